// Command mixnetd is the demo/harness binary for the mixnet protocol
// engine (spec.md §2.4): it loads a YAML topology, wires one node.Engine
// per entry over an in-memory transport.Fabric, drives them, and prints
// convergence and route state. It is an external collaborator, not part
// of the core engine — no subcommand here is a spec.md operation.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	topologyPath  string
	tickCount     int
	tickStep      time.Duration
	metricsAddr   string
	verbose       bool
	transcriptDir string
)

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
}

// serveMetrics starts a background /metrics exporter if metricsAddr is
// set, registering every engine's collectors (spec.md §2.7).
func serveMetrics(f *fleet, log zerolog.Logger) {
	if metricsAddr == "" {
		return
	}
	reg := prometheus.NewRegistry()
	for _, c := range f.collectors() {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("metrics collector registration failed")
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", metricsAddr).Msg("serving /metrics")
}

func printConvergence(f *fleet, log zerolog.Logger) {
	for _, addr := range f.order {
		e := f.engines[addr]
		b := e.Belief()
		log.Info().
			Uint16("node", addr).
			Bool("is_root", e.IsRoot()).
			Uint16("root", b.Root).
			Uint16("path_length", b.PathLength).
			Uint16("next_hop", b.NextHop).
			Msg("converged belief")
	}
}

func main() {
	root := &cobra.Command{
		Use:   "mixnetd",
		Short: "Demo harness for the mixnet protocol engine",
	}
	root.PersistentFlags().StringVarP(&topologyPath, "topology", "t", "", "path to a YAML topology file (required)")
	root.PersistentFlags().IntVarP(&tickCount, "ticks", "n", 200, "number of ticks to drive the fleet before reporting")
	root.PersistentFlags().DurationVar(&tickStep, "step", time.Millisecond, "simulated time advanced per tick")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve /metrics on this address (e.g. :9090)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	root.PersistentFlags().StringVar(&transcriptDir, "transcript-dir", "", "if set, write one <addr>.jsonl frame transcript per node to this directory")
	_ = root.MarkPersistentFlagRequired("topology")

	root.AddCommand(newRunCmd(), newPingCmd(), newFloodCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
