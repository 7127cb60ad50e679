package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// newTestMetrics uses a fresh registry per test to avoid duplicate metric
// registration panics across the package's test functions.
func newTestMetrics() *Metrics {
	return New(prometheus.NewRegistry())
}

func TestObserveHostImportRecordsSample(t *testing.T) {
	m := newTestMetrics()
	m.ObserveHostImport("demo", "invoke_http", time.Now().Add(-10*time.Millisecond))

	hist, err := m.HostImportLatency.GetMetricWithLabelValues("demo", "invoke_http")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var metric dto.Metric
	if err := hist.Write(&metric); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Fatalf("expected one sample, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestMailboxDepthGauge(t *testing.T) {
	m := newTestMetrics()
	m.MailboxDepth.WithLabelValues("demo").Set(3)

	gauge, err := m.MailboxDepth.GetMetricWithLabelValues("demo")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var metric dto.Metric
	if err := gauge.Write(&metric); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if metric.Gauge.GetValue() != 3 {
		t.Fatalf("expected gauge value 3, got %v", metric.Gauge.GetValue())
	}
}
