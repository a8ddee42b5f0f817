// Package observability groups the Prometheus instruments used by the
// service and exposes the /metrics handler.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	TurnsAppended  *prometheus.CounterVec
	TurnDuration   prometheus.Histogram
	ProviderErrors prometheus.Counter
	TurnsDeleted   prometheus.Counter
	ActiveTurns    prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TurnsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_appended_total",
			Help:      "Persisted transcript turns by role.",
		}, []string{"role"}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a full send-message turn, including generation.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ProviderErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Generation collaborator failures.",
		}),
		TurnsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_deleted_total",
			Help:      "Turns removed by user deletions, including cascaded replies.",
		}),
		ActiveTurns: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_turns",
			Help:      "Send-message requests currently in flight.",
		}),
	}
}

func (m *Metrics) ObserveTurnDuration(d time.Duration) {
	m.TurnDuration.Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
