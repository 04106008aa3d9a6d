// Package config holds the engine's immutable startup configuration
// (spec §3 "Node configuration") and a YAML-loadable demo topology format
// used only by cmd/mixnetd, generalized from the teacher's text-format
// link-state parser (link.go, topology.go).
package config

import (
	"fmt"
	"io"
	"time"
)

// ErrInvalidConfig is a fatal configuration error (spec §7: "configuration
// missing own address" refuses to start the node).
type ErrInvalidConfig struct {
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid node configuration: %s", e.Reason)
}

// Config is the immutable per-node configuration supplied at startup
// (spec §3). Neighbors is ordered; port index == slice index, and the
// slot immediately past the end is the user port.
type Config struct {
	Self               uint16
	Neighbors          []uint16
	RootHelloInterval  time.Duration
	ReelectionInterval time.Duration
	MixingFactor       int
	RandomRouting      bool
	Seed               [2]uint64 // math/rand/v2.NewPCG seed, used only when RandomRouting is true

	// Transcript, if set, receives one structured log line per frame this
	// node sends or receives, generalizing the teacher's per-node
	// inputLog/outputLog/receivedLog text files into a single stream.
	Transcript io.Writer
}

// Validate checks the invariants the engine assumes but does not enforce
// at the protocol layer (spec §5 "the re-election deadline must be
// strictly greater than the hello interval").
func (c Config) Validate() error {
	if c.MixingFactor < 1 {
		return ErrInvalidConfig{Reason: "mixing factor must be >= 1"}
	}
	if c.ReelectionInterval <= c.RootHelloInterval {
		return ErrInvalidConfig{Reason: "reelection interval must be strictly greater than the root-hello interval"}
	}
	seen := make(map[uint16]bool, len(c.Neighbors))
	for _, n := range c.Neighbors {
		if n == c.Self {
			return ErrInvalidConfig{Reason: "a node cannot list itself as a neighbor"}
		}
		if seen[n] {
			return ErrInvalidConfig{Reason: fmt.Sprintf("duplicate neighbor address %d", n)}
		}
		seen[n] = true
	}
	return nil
}

// UserPort is the logical port index for the locally-attached
// application (spec §6: "equal in index to num_neighbors").
func (c Config) UserPort() int {
	return len(c.Neighbors)
}
