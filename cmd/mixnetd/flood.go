package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaymesh/mixnet/wire"
)

func newFloodCmd() *cobra.Command {
	var from uint16
	cmd := &cobra.Command{
		Use:   "flood",
		Short: "Converge a topology, then originate one broadcast and report who received it",
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

			h, ok := f.handles[from]
			if !ok {
				return fmt.Errorf("no node %d in topology", from)
			}
			h.Originate(&wire.Frame{SrcAddress: from, DstAddress: 0, Type: wire.FLOOD})

			t := start
			for i := 0; i < tickCount; i++ {
				t = t.Add(tickStep)
				f.tick(t)
			}

			received := 0
			for _, addr := range f.order {
				handle := f.handles[addr]
				for {
					select {
					case <-handle.Deliveries():
						received++
						log.Info().Uint16("node", addr).Msg("flood delivered")
						continue
					default:
					}
					break
				}
			}
			log.Info().Int("deliveries", received).Msg("flood complete")
			return nil
		},
	}
	cmd.Flags().Uint16Var(&from, "from", 0, "originating node address (required)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
