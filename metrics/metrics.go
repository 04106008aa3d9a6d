// Package metrics generalizes the teacher's lone STP_pkt_ct counter into a
// small Prometheus-backed registry of per-node engine metrics (spec §2.7).
// It has no HTTP surface of its own: cmd/mixnetd registers Registry's
// Collectors with its own prometheus.Registry and serves /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaymesh/mixnet/wire"
)

// Registry holds one node's engine metrics, labeled by that node's
// address so multiple Engines can share one prometheus.Registerer in a
// single process (spec §9 "no process-wide singleton").
type Registry struct {
	FramesSent       *prometheus.CounterVec
	FramesReceived   *prometheus.CounterVec
	RouteRecomputes  prometheus.Counter
	FloodDeliveries  prometheus.Counter
	MixBufferFlushes prometheus.Counter
	PingRTT          prometheus.Histogram
	ReelectionEvents prometheus.Counter
}

// New builds a Registry for node self. Callers must register the
// returned collectors with a prometheus.Registerer exactly once.
func New(self uint16) *Registry {
	labels := prometheus.Labels{"node": addrLabel(self)}
	return &Registry{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mixnet",
			Name:        "frames_sent_total",
			Help:        "Frames transmitted, by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mixnet",
			Name:        "frames_received_total",
			Help:        "Frames accepted for processing, by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		RouteRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mixnet",
			Name:        "route_recomputes_total",
			Help:        "Topology-triggered route table recomputations.",
			ConstLabels: labels,
		}),
		FloodDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mixnet",
			Name:        "flood_deliveries_total",
			Help:        "Flood frames delivered to the user port.",
			ConstLabels: labels,
		}),
		MixBufferFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mixnet",
			Name:        "mix_buffer_flushes_total",
			Help:        "Mix buffer flush events.",
			ConstLabels: labels,
		}),
		PingRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mixnet",
			Name:        "ping_rtt_seconds",
			Help:        "Observed ping round-trip time.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		ReelectionEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mixnet",
			Name:        "stp_reelections_total",
			Help:        "Spanning-tree re-election events.",
			ConstLabels: labels,
		}),
	}
}

// Collectors returns every metric for bulk registration.
func (r *Registry) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.FramesSent, r.FramesReceived, r.RouteRecomputes,
		r.FloodDeliveries, r.MixBufferFlushes, r.PingRTT, r.ReelectionEvents,
	}
}

// ObserveSent increments the sent counter for t.
func (r *Registry) ObserveSent(t wire.Type) {
	r.FramesSent.WithLabelValues(t.String()).Inc()
}

// ObserveReceived increments the received counter for t.
func (r *Registry) ObserveReceived(t wire.Type) {
	r.FramesReceived.WithLabelValues(t.String()).Inc()
}

// ObservePingRTT records the round-trip time of a completed ping (spec
// §4.9/P8), measured by the original pinger from OriginatePing's
// send_time_us to the matching PingResponse's arrival.
func (r *Registry) ObservePingRTT(d time.Duration) {
	r.PingRTT.Observe(d.Seconds())
}

func addrLabel(addr uint16) string {
	return strconv.FormatUint(uint64(addr), 10)
}
