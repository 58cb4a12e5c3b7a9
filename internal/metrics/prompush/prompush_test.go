package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"pgarray/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func summaryCount(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("summary does not implement prometheus.Metric")
	}
	m := &dto.Metric{}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write: %v", err)
	}
	return m.GetSummary().GetSampleCount(), m.GetSummary().GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		job     string
		url     string
		wantErr bool
		wantJob string
	}{
		{name: "missing url", job: "x", url: "", wantErr: true},
		{name: "default job", job: "", url: "http://pushgateway:9091", wantJob: "pgarray"},
		{name: "explicit job", job: "articles", url: "http://pushgateway:9091", wantJob: "articles"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := NewBackend(tt.job, tt.url)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want nil, error", tt.job, tt.url, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend: %v", err)
			}
			if b.jobName != tt.wantJob {
				t.Fatalf("jobName = %q; want %q", b.jobName, tt.wantJob)
			}
		})
	}
}

/*
IncCounter routes each shared metric name to its collector and ignores
names it does not know.
*/
func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("j", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "load", "status": metrics.StatusSuccess})
	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{"kind": metrics.RowsInserted})
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.IncCounter(metrics.BatchesTotal, 0.5, nil)
	b.IncCounter("unknown", 10, nil)

	if got := counterValue(t, b.steps.WithLabelValues("load", metrics.StatusSuccess)); got != 2 {
		t.Fatalf("steps = %v; want 2", got)
	}
	if got := counterValue(t, b.rows.WithLabelValues(metrics.RowsInserted)); got != 5 {
		t.Fatalf("rows = %v; want 5", got)
	}
	if got := counterValue(t, b.batches); got != 1.5 {
		t.Fatalf("batches = %v; want 1.5", got)
	}
}

func TestZeroBackendIsSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{})
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{})
	b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{})
	b.ObserveHistogram(metrics.StepDuration, 1, metrics.Labels{})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("j", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	lbls := metrics.Labels{"step": "dump", "status": metrics.StatusFailure}
	b.ObserveHistogram(metrics.StepDuration, 1.5, lbls)
	b.ObserveHistogram("other", 9, lbls)

	n, sum := summaryCount(t, b.stepDuration, "dump", metrics.StatusFailure)
	if n != 1 || sum != 1.5 {
		t.Fatalf("summary = (%d, %v); want (1, 1.5)", n, sum)
	}
}

// TestFlush checks that Flush sends a non-empty push to the gateway.
func TestFlush(t *testing.T) {
	t.Parallel()

	type req struct {
		method string
		path   string
		n      int
	}
	got := make(chan req, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- req{r.Method, r.URL.Path, len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("articles", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": metrics.RowsRead})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	select {
	case r := <-got:
		if r.method != http.MethodPut {
			t.Fatalf("method = %s; want PUT", r.method)
		}
		if r.path != "/metrics/job/articles" {
			t.Fatalf("path = %s", r.path)
		}
		if r.n == 0 {
			t.Fatal("empty push body")
		}
	default:
		t.Fatal("no request reached the gateway")
	}
}
