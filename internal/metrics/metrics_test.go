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

	counters   []counterCall
	histograms []counterCall
	flushes    int
}

type counterCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, counterCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

// install swaps in a fake for one test. Tests using it do not run in
// parallel since the backend is process-global.
func install(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	SetBackend(fb)
	t.Cleanup(func() { SetBackend(nil) })
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordStep("breaches", "load", nil, 2*time.Second)
	RecordStep("breaches", "write", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("counters=%d histograms=%d, want 2 and 2", len(fb.counters), len(fb.histograms))
	}

	tests := []struct {
		i      int
		step   string
		status string
		secs   float64
	}{
		{0, "load", "success", 2},
		{1, "write", "failure", 1.5},
	}
	for _, tt := range tests {
		c, h := fb.counters[tt.i], fb.histograms[tt.i]
		if c.name != StepTotal || c.value != 1 {
			t.Errorf("counter[%d] = %#v", tt.i, c)
		}
		if c.labels["step"] != tt.step || c.labels["status"] != tt.status || c.labels["job"] != "breaches" {
			t.Errorf("counter[%d].labels = %v", tt.i, c.labels)
		}
		if h.name != StepDuration || h.value != tt.secs {
			t.Errorf("histogram[%d] = %#v, want %v seconds", tt.i, h, tt.secs)
		}
	}
}

func TestRecordRowsAndBatches(t *testing.T) {
	fb := install(t)

	RecordRows("breaches", "loaded", 3)
	RecordRows("breaches", "zeroed", 0) // ignored
	RecordBatches("breaches", 2)
	RecordBatches("breaches", -1) // ignored

	if len(fb.counters) != 2 {
		t.Fatalf("counters = %#v, want 2 calls", fb.counters)
	}
	if c := fb.counters[0]; c.name != RowsTotal || c.value != 3 || c.labels["stage"] != "loaded" {
		t.Fatalf("rows counter = %#v", c)
	}
	if c := fb.counters[1]; c.name != BatchesTotal || c.value != 2 || c.labels["job"] != "breaches" {
		t.Fatalf("batches counter = %#v", c)
	}
}

func TestFlushAndNilBackend(t *testing.T) {
	fb := install(t)

	if err := Flush(); err != nil || fb.flushes != 1 {
		t.Fatalf("Flush = %v, flushes = %d", err, fb.flushes)
	}

	SetBackend(nil)
	RecordRows("breaches", "loaded", 1)
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush = %v", err)
	}
	if len(fb.counters) != 0 {
		t.Fatalf("fake still receiving after SetBackend(nil): %#v", fb.counters)
	}
}
