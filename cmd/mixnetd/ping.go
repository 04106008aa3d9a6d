package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaymesh/mixnet/wire"
)

func newPingCmd() *cobra.Command {
	var from, to uint16
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Converge a topology, then send one ping and report its round-trip time",
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

			origin, ok := f.engines[from]
			if !ok {
				return fmt.Errorf("no node %d in topology", from)
			}
			h, ok := f.handles[from]
			if !ok {
				return fmt.Errorf("no transport handle for node %d", from)
			}

			sendTime := uint64(time.Now().UnixMicro())
			if err := origin.OriginatePing(to, sendTime); err != nil {
				return fmt.Errorf("originate ping: %w", err)
			}

			t := start
			for i := 0; i < tickCount; i++ {
				t = t.Add(tickStep)
				f.tick(t)

				select {
				case frame := <-h.Deliveries():
					p, err := wire.DecodePing(frame.Payload)
					if err != nil {
						return fmt.Errorf("decode ping delivery: %w", err)
					}
					if p.Direction != wire.PingResponse {
						continue
					}
					rttUs := uint64(time.Now().UnixMicro()) - p.SendTimeUs
					log.Info().Uint16("from", from).Uint16("to", to).
						Dur("rtt", time.Duration(rttUs)*time.Microsecond).
						Msg("ping complete")
					return nil
				default:
				}
			}
			return fmt.Errorf("no ping response from node %d within %d ticks", to, tickCount)
		},
	}
	cmd.Flags().Uint16Var(&from, "from", 0, "originating node address (required)")
	cmd.Flags().Uint16Var(&to, "to", 0, "destination node address (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
