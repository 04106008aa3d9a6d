package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeSpec is one node's entry in a demo topology file.
type NodeSpec struct {
	Address   uint16   `yaml:"address"`
	Neighbors []uint16 `yaml:"neighbors"`
}

// Topology is the demo/harness-only YAML description of a whole graph of
// nodes sharing one set of timing parameters (cmd/mixnetd §2.4) —
// generalized from the teacher's line-oriented link-state format
// (link.go's `parseLinkState`, topology.go's `NetworkTypology`) into a
// single structured document, since a YAML parser is already part of
// this repo's ambient stack (§2.3).
type Topology struct {
	RootHelloIntervalMs  int        `yaml:"root_hello_interval_ms"`
	ReelectionIntervalMs int        `yaml:"reelection_interval_ms"`
	MixingFactor         int        `yaml:"mixing_factor"`
	RandomRouting        bool       `yaml:"random_routing"`
	Seed                 []uint64   `yaml:"seed"`
	Nodes                []NodeSpec `yaml:"nodes"`
}

// LoadTopology reads and parses a demo topology file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var top Topology
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	return &top, nil
}

// Configs expands the topology into one Config per node.
func (t *Topology) Configs() []Config {
	var seed [2]uint64
	if len(t.Seed) > 0 {
		seed[0] = t.Seed[0]
	}
	if len(t.Seed) > 1 {
		seed[1] = t.Seed[1]
	}

	mixingFactor := t.MixingFactor
	if mixingFactor < 1 {
		mixingFactor = 1
	}

	configs := make([]Config, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		configs = append(configs, Config{
			Self:               n.Address,
			Neighbors:          append([]uint16(nil), n.Neighbors...),
			RootHelloInterval:  time.Duration(t.RootHelloIntervalMs) * time.Millisecond,
			ReelectionInterval: time.Duration(t.ReelectionIntervalMs) * time.Millisecond,
			MixingFactor:       mixingFactor,
			RandomRouting:      t.RandomRouting,
			Seed:               seed,
		})
	}
	return configs
}
