// Package metrics is a small, backend-agnostic facade for recording pipeline
// metrics.
//
// Callers record through package functions (RecordStep, RecordRows,
// RecordBatches). A process installs one concrete Backend at startup with
// SetBackend; until then every call goes to a no-op backend, so
// instrumentation is always safe. Concrete systems live in subpackages
// (prompush for a Prometheus Pushgateway, datadog for DogStatsD).
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal     = "breachetl_step_total"
	StepDuration  = "breachetl_step_duration_seconds"
	RowsTotal     = "breachetl_rows_total"
	BatchesTotal  = "breachetl_batches_total"
	statusSuccess = "success"
	statusFailure = "failure"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil restores the no-op
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a pipeline step (load, transform,
// write) and observes its duration, labelled by outcome.
func RecordStep(job, step string, err error, d time.Duration) {
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta rows to the counter for stage ("loaded",
// "transformed", "written", "zeroed", "deduped"). Non-positive deltas are
// ignored.
func RecordRows(job, stage string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"job": job, "stage": stage})
}

// RecordBatches increments the insert batch counter for job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}
