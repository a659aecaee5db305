package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func withBackend(t *testing.T, b Backend) {
	t.Helper()
	prev := backend
	SetBackend(b)
	t.Cleanup(func() { backend = prev })
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := &fakeBackend{}
	withBackend(t, fb)

	RecordStep("atp", "parse", nil, 120*time.Millisecond)
	RecordStep("atp", "apply", errors.New("boom"), 30*time.Millisecond)

	if len(fb.callsCounters) != 2 {
		t.Fatalf("counter calls = %d, want 2", len(fb.callsCounters))
	}
	if len(fb.callsHistograms) != 2 {
		t.Fatalf("histogram calls = %d, want 2", len(fb.callsHistograms))
	}

	ok := fb.callsCounters[0]
	if ok.name != "load_step_total" || ok.labels["status"] != "success" || ok.labels["step"] != "parse" {
		t.Errorf("first counter call = %+v", ok)
	}
	bad := fb.callsCounters[1]
	if bad.labels["status"] != "failure" || bad.labels["step"] != "apply" {
		t.Errorf("second counter call = %+v", bad)
	}
	if got := fb.callsHistograms[0].value; got != 0.12 {
		t.Errorf("histogram value = %v, want 0.12", got)
	}
}

func TestRecordRow_IgnoresNonPositive(t *testing.T) {
	fb := &fakeBackend{}
	withBackend(t, fb)

	RecordRow("atp", "parsed", 0)
	RecordRow("atp", "parsed", -3)
	RecordRow("atp", "persisted", 7)

	if len(fb.callsCounters) != 1 {
		t.Fatalf("counter calls = %d, want 1", len(fb.callsCounters))
	}
	c := fb.callsCounters[0]
	if c.name != "load_records_total" || c.delta != 7 || c.labels["kind"] != "persisted" {
		t.Errorf("counter call = %+v", c)
	}
}

func TestSetBackend_NilKeepsCurrent(t *testing.T) {
	fb := &fakeBackend{}
	withBackend(t, fb)

	SetBackend(nil)
	RecordBatches("atp", 1)

	if len(fb.callsCounters) != 1 {
		t.Fatalf("counter calls = %d, want 1", len(fb.callsCounters))
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if fb.flushCount != 1 {
		t.Errorf("flush count = %d, want 1", fb.flushCount)
	}
}
