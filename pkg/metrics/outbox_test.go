package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Observe("order_confirmed", "published")
	m.Observe("order_confirmed", "published")
	m.Observe("order_confirmed", "retry")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	got, err := fetchCounterValue(mfs, "bakehouse_outbox_events_total", "outcome", "published")
	if err != nil {
		t.Fatalf("fetch published: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected published=2, got %f", got)
	}
}

func TestNilOutboxMetricsIsSafe(t *testing.T) {
	var m *OutboxMetrics
	m.Observe("order_confirmed", "published")
	NewOutboxMetrics(nil).Observe("order_confirmed", "dead_letter")
}
