package memory

import "github.com/prometheus/client_golang/prometheus"

// Metric names.
const (
	MetricCreated = "memories_created_total"
	MetricLikes   = "memory_likes_total"
	MetricViews   = "memory_views_total"
)

// Metrics holds memory collectors.
type Metrics struct {
	created *prometheus.CounterVec
	likes   *prometheus.CounterVec
	views   prometheus.Counter
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCreated,
			Help: "Total number of memories created, by media type",
		}, []string{"media_type"}),
		likes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLikes,
			Help: "Total number of like toggles, by resulting state",
		}, []string{"action"}),
		views: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricViews,
			Help: "Total number of memory detail views",
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.created, m.likes, m.views} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) incCreated(mediaType string) {
	if m != nil {
		m.created.WithLabelValues(mediaType).Inc()
	}
}

func (m *Metrics) incLike(liked bool) {
	if m == nil {
		return
	}
	action := "unlike"
	if liked {
		action = "like"
	}
	m.likes.WithLabelValues(action).Inc()
}

func (m *Metrics) incView() {
	if m != nil {
		m.views.Inc()
	}
}
