package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Drive a topology to convergence and print each node's STP belief",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			start := time.Now()
			f, err := buildFleet(topologyPath, log, start, metricsAddr != "", transcriptDir)
			if err != nil {
				return err
			}
			defer f.Close()
			serveMetrics(f, log)
			f.run(start, tickCount, tickStep)
			printConvergence(f, log)
			return nil
		},
	}
}
