// Package metrics records load and dump activity through a pluggable
// backend. The default backend discards everything, so callers never need
// to check whether metrics are configured.
//
// Concrete systems live in subpackages (prompush, datadog) and are
// installed once at startup with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal       = "pgarray_step_total"
	StepDuration    = "pgarray_step_duration_seconds"
	RowsTotal       = "pgarray_rows_total"
	BatchesTotal    = "pgarray_batches_total"
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	defaultJobLabel = "pgarray"
)

// Row kinds reported by the loader.
const (
	RowsRead       = "read"
	RowsInserted   = "inserted"
	RowsRejected   = "rejected"
	RowsDuplicates = "duplicates"
	RowsDumped     = "dumped"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by each metrics system.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered data, if the backend buffers.
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

// SetBackend installs b. Passing nil keeps the current backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error { return current().Flush() }

func jobLabel(job string) string {
	if job == "" {
		return defaultJobLabel
	}
	return job
}

// RecordStep counts one execution of step and observes its duration, with a
// status label derived from err.
func RecordStep(job, step string, err error, d time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	lbls := Labels{"job": jobLabel(job), "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Step starts timing step; call the returned func with the step's error.
//
//	done := metrics.Step(job, "load")
//	defer func() { done(err) }()
func Step(job, step string) func(error) {
	start := time.Now()
	return func(err error) { RecordStep(job, step, err, time.Since(start)) }
}

// RecordRow adds delta rows of kind. Non-positive deltas are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"job": jobLabel(job), "kind": kind})
}

// RecordBatches adds delta flushed batches. Non-positive deltas are ignored.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": jobLabel(job)})
}
