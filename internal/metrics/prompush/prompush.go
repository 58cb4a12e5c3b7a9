// Package prompush pushes pgarray metrics to a Prometheus Pushgateway.
//
// The job label becomes the Pushgateway grouping key, so collectors only
// carry the remaining labels.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"pgarray/internal/metrics"
)

// Backend is a metrics.Backend that pushes a private registry.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec
	rows         *prometheus.CounterVec
	batches      prometheus.Counter
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend builds a Backend pushing to gatewayURL under jobName. An empty
// jobName becomes "pgarray".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "pgarray"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Executions of check, ddl, load and dump steps by status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Step duration in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows by kind (read, inserted, rejected, duplicates, dumped).",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Batches written to the store.",
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":  b.steps,
		"step summary":  b.stepDuration,
		"row counter":   b.rows,
		"batch counter": b.batches,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter routes known metric names to their collector; others are
// dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.steps != nil {
			b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rows != nil {
			b.rows.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batches != nil {
			b.batches.Add(delta)
		}
	}
}

// ObserveHistogram records step durations.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the registry, replacing the group's previous values.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}
