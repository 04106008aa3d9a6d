package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/relaymesh/mixnet/config"
	"github.com/relaymesh/mixnet/metrics"
	"github.com/relaymesh/mixnet/node"
	"github.com/relaymesh/mixnet/transport"
)

// fleet is every engine in a demo topology, wired to a shared in-memory
// fabric and ready to be driven tick by tick (spec.md §2.4, §2.5).
type fleet struct {
	fabric  *transport.Fabric
	engines map[uint16]*node.Engine
	handles map[uint16]*transport.NodeHandle
	order   []uint16
	closers []*os.File
}

// buildFleet loads a topology file and constructs one node.Engine per
// entry, cross-wired over a transport.Fabric, optionally reporting to a
// shared metrics registry keyed by node address. When transcriptDir is
// non-empty, each node's frame transcript (config.Config.Transcript) is
// written to <transcriptDir>/<addr>.jsonl, generalizing the teacher's
// per-node ./log/<id>_{in,out,received}.txt files.
func buildFleet(path string, log zerolog.Logger, now time.Time, withMetrics bool, transcriptDir string) (*fleet, error) {
	top, err := config.LoadTopology(path)
	if err != nil {
		return nil, fmt.Errorf("load topology: %w", err)
	}
	configs := top.Configs()

	fabric := transport.NewFabric()
	handles := make(map[uint16]*transport.NodeHandle, len(configs))
	for _, c := range configs {
		handles[c.Self] = fabric.AddNode(c.Self, c.Neighbors, 64)
	}
	if err := fabric.Wire(); err != nil {
		return nil, fmt.Errorf("wire fabric: %w", err)
	}

	f := &fleet{fabric: fabric, engines: make(map[uint16]*node.Engine, len(configs)), handles: handles}
	for _, c := range configs {
		var reg *metrics.Registry
		if withMetrics {
			reg = metrics.New(c.Self)
		}
		if transcriptDir != "" {
			path := filepath.Join(transcriptDir, fmt.Sprintf("%d.jsonl", c.Self))
			file, err := os.Create(path)
			if err != nil {
				return nil, fmt.Errorf("create transcript for node %d: %w", c.Self, err)
			}
			c.Transcript = file
			f.closers = append(f.closers, file)
		}
		e, err := node.New(c, handles[c.Self], reg, log, now)
		if err != nil {
			return nil, fmt.Errorf("construct node %d: %w", c.Self, err)
		}
		f.engines[c.Self] = e
		f.order = append(f.order, c.Self)
	}
	return f, nil
}

// Close flushes and closes every transcript file opened for this fleet.
func (f *fleet) Close() {
	for _, file := range f.closers {
		file.Close()
	}
}

// tick drives every engine exactly once, in topology-file order, matching
// spec.md §5's single-cooperative-loop-per-node model (cross-node
// ordering is otherwise left to the fabric's per-edge FIFO).
func (f *fleet) tick(now time.Time) {
	for _, addr := range f.order {
		f.engines[addr].Tick(now)
	}
}

// run drives the fleet for n ticks spaced step apart, starting at start.
func (f *fleet) run(start time.Time, n int, step time.Duration) {
	t := start
	for i := 0; i < n; i++ {
		t = t.Add(step)
		f.tick(t)
	}
}

// collectors gathers every engine's metric collectors for bulk
// registration with an HTTP exporter (spec.md §2.7).
func (f *fleet) collectors() []prometheus.Collector {
	var out []prometheus.Collector
	for _, addr := range f.order {
		reg := f.engines[addr].MetricsRegistry()
		if reg == nil {
			continue
		}
		out = append(out, reg.Collectors()...)
	}
	return out
}
