package prompush

import (
	"testing"

	"tennisetl/internal/metrics"
)

func TestNewBackend_RequiresGatewayURL(t *testing.T) {
	if _, err := NewBackend("atp", ""); err == nil {
		t.Fatal("expected error for empty gateway URL")
	}
}

func TestIncCounter_MapsKnownMetrics(t *testing.T) {
	b, err := NewBackend("atp", "http://pushgateway:9091")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter("load_step_total", 1, metrics.Labels{"step": "parse", "status": "success"})
	b.IncCounter("load_records_total", 42, metrics.Labels{"kind": "persisted"})
	b.IncCounter("load_batches_total", 2, nil)
	b.IncCounter("unknown_metric", 1, nil)
	b.ObserveHistogram("load_step_duration_seconds", 0.25, metrics.Labels{"step": "parse", "status": "success"})

	fams, err := b.reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	got := map[string]bool{}
	for _, mf := range fams {
		got[mf.GetName()] = true
	}
	for _, want := range []string{
		"load_step_total",
		"load_records_total",
		"load_batches_total",
		"load_step_duration_seconds",
	} {
		if !got[want] {
			t.Errorf("metric %q not gathered; got %v", want, got)
		}
	}
	if got["unknown_metric"] {
		t.Error("unknown metric should be ignored")
	}
}
