package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/relaymesh/mixnet/wire"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveSentAndReceived(t *testing.T) {
	r := New(1)

	r.ObserveSent(wire.DATA)
	r.ObserveSent(wire.DATA)
	r.ObserveReceived(wire.STP)

	if got := counterValue(t, r.FramesSent.WithLabelValues("DATA")); got != 2 {
		t.Errorf("FramesSent[DATA] = %v, want 2", got)
	}
	if got := counterValue(t, r.FramesReceived.WithLabelValues("STP")); got != 1 {
		t.Errorf("FramesReceived[STP] = %v, want 1", got)
	}
}

func TestObservePingRTT(t *testing.T) {
	r := New(1)

	r.ObservePingRTT(50 * time.Millisecond)
	r.ObservePingRTT(150 * time.Millisecond)

	var m dto.Metric
	if err := r.PingRTT.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("PingRTT sample count = %d, want 2", got)
	}
	if got := m.GetHistogram().GetSampleSum(); got != 0.2 {
		t.Errorf("PingRTT sample sum = %v, want 0.2", got)
	}
}

func TestCollectors_registerWithoutConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(1)
	b := New(2)

	for _, c := range a.Collectors() {
		if err := reg.Register(c); err != nil {
			t.Fatalf("register node 1 collector: %v", err)
		}
	}
	for _, c := range b.Collectors() {
		if err := reg.Register(c); err != nil {
			t.Fatalf("register node 2 collector: %v", err)
		}
	}
}
