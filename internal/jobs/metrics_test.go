package jobs

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()
		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() returned error: %v", err)
		}

		m.IncJobsTotal(JobTypeIdempotencyCleanup, StatusSuccess)
		m.ObserveJobDuration(JobTypeIdempotencyCleanup, 0.01)
		m.IncJobErrors(JobTypeIdempotencyCleanup, "timeout")

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() returned error: %v", err)
		}
		found := make(map[string]bool)
		for _, f := range families {
			found[f.GetName()] = true
		}
		for _, name := range []string{MetricBackgroundJobsTotal, MetricBackgroundJobsDuration, MetricBackgroundJobErrorsTotal} {
			if !found[name] {
				t.Errorf("metric %s not gathered", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if err := NewMetrics().Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}
		if err := NewMetrics().Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncJobsTotal(JobTypeIdempotencyCleanup, StatusSuccess)
	m.ObserveJobDuration(JobTypeIdempotencyCleanup, 1)
	m.IncJobErrors(JobTypeIdempotencyCleanup, "error")
}

func TestMetrics_Concurrency(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	const goroutines, iterations = 10, 100

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				m.IncJobsTotal(JobTypeRateLimitCleanup, StatusSuccess)
				m.ObserveJobDuration(JobTypeRateLimitCleanup, 0.002)
			}
		}()
	}
	wg.Wait()

	want := float64(goroutines * iterations)
	if got := counterValue(m.jobsTotal, JobTypeRateLimitCleanup, StatusSuccess); got != want {
		t.Errorf("jobs total = %v, want %v", got, want)
	}
	if got := histogramCount(m.jobsDuration, JobTypeRateLimitCleanup); got != uint64(want) {
		t.Errorf("duration samples = %d, want %v", got, want)
	}
}

func counterValue(vec *prometheus.CounterVec, labels ...string) float64 {
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return -1
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func histogramCount(vec *prometheus.HistogramVec, labels ...string) uint64 {
	o, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	metric, ok := o.(prometheus.Metric)
	if !ok {
		return 0
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}
