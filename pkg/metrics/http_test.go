package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("POST", "/api/v1/orders", 201, 40*time.Millisecond)
	m.Observe("POST", "/api/v1/orders", 201, 60*time.Millisecond)
	m.Observe("GET", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "bakehouse_http_requests_total", "route", "/api/v1/orders"); err != nil || got != 2 {
		t.Fatalf("expected 2 order requests, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "bakehouse_http_requests_total", "route", "unmatched"); err != nil || got != 1 {
		t.Fatalf("expected unmatched route label, got %f err=%v", got, err)
	}
}

func TestNilHTTPMetricsIsNoop(t *testing.T) {
	var m *HTTPMetrics
	m.Observe("GET", "/", 200, time.Second)
}
