package presence

import "github.com/prometheus/client_golang/prometheus"

// Metric names.
const (
	MetricSharesStarted = "presence_shares_started_total"
	MetricSharesStopped = "presence_shares_stopped_total"
	MetricSharesExpired = "presence_shares_expired_total"
)

// Metrics counts share lifecycle transitions.
type Metrics struct {
	started prometheus.Counter
	stopped prometheus.Counter
	expired prometheus.Counter
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSharesStarted,
			Help: "Total number of location shares started",
		}),
		stopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSharesStopped,
			Help: "Total number of location shares stopped by their owner",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSharesExpired,
			Help: "Total number of sweeps that expired at least one share",
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.started, m.stopped, m.expired} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) incStarted() {
	if m != nil {
		m.started.Inc()
	}
}

func (m *Metrics) incStopped() {
	if m != nil {
		m.stopped.Inc()
	}
}

func (m *Metrics) incExpired() {
	if m != nil {
		m.expired.Inc()
	}
}
