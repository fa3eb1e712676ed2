package event

import "github.com/prometheus/client_golang/prometheus"

// MetricActivities is the name of the activity counter.
const MetricActivities = "event_activities_total"

// Metrics counts recorded event activities by type.
type Metrics struct {
	activities *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricActivities,
			Help: "Total number of event activities recorded, by activity type",
		}, []string{"type"}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m.activities)
}

func (m *Metrics) record(t ActivityType) {
	if m != nil {
		m.activities.WithLabelValues(string(t)).Inc()
	}
}
