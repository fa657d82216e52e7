package update

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "updatekit",
			Subsystem: "update",
			Name:      "checks_total",
			Help:      "Total number of finished update checks",
		},
		[]string{"kind", "outcome"},
	)

	notificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "updatekit",
			Subsystem: "update",
			Name:      "notifications_total",
			Help:      "Total number of availability notifications broadcast to observers",
		},
	)

	feedFetchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "updatekit",
			Subsystem: "update",
			Name:      "feed_fetch_seconds",
			Help:      "Duration of feed fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	observersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "updatekit",
			Subsystem: "update",
			Name:      "observers",
			Help:      "Number of registered update observers",
		},
	)
)

func init() {
	prometheus.MustRegister(checksTotal, notificationsTotal, feedFetchSeconds, observersGauge)
}

func observeCheck(kind CheckKind, outcome string) {
	if outcome == "" {
		outcome = "unspecified"
	}
	checksTotal.WithLabelValues(kind.String(), outcome).Inc()
}

func observeFetch(d time.Duration) {
	feedFetchSeconds.Observe(d.Seconds())
}
