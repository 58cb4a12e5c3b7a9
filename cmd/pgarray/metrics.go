package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"pgarray/internal/metrics"
	"pgarray/internal/metrics/datadog"
	"pgarray/internal/metrics/prompush"
)

// setupMetrics installs the selected backend and returns a flush func to
// defer. A backend that fails to start is logged and metrics stay disabled.
func (o *options) setupMetrics(job string) (func(), error) {
	var (
		b   metrics.Backend
		err error
	)
	switch o.metricsBackend {
	case "", "none":
		return func() {}, nil
	case "pushgateway":
		b, err = prompush.NewBackend(job, o.pushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:      o.statsdAddr,
			Namespace: "pgarray.",
			Tags:      []string{"job:" + job},
		})
	default:
		return nil, fmt.Errorf("unknown metrics backend %q (want none, pushgateway or datadog)", o.metricsBackend)
	}
	if err != nil {
		logrus.WithError(err).WithField("backend", o.metricsBackend).Warn("metrics: backend unavailable; disabled")
		return func() {}, nil
	}

	logrus.WithFields(logrus.Fields{"backend": o.metricsBackend, "job": job}).Debug("metrics: enabled")
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logrus.WithError(err).Warn("metrics: flush failed")
		}
	}, nil
}
