package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PageViews = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "agenda",
		Name:      "page_views_total",
		Help:      "Number of event page renders",
	})
	FeedLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agenda",
		Name:      "feed_loads_total",
		Help:      "Feed load attempts by status",
	}, []string{"status"})
	Enrollments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agenda",
		Name:      "enrollments_total",
		Help:      "Enrollment API outcomes",
	}, []string{"status"})
	GridCards = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agenda",
		Name:      "grid_cards",
		Help:      "Cards currently held by the event grid",
	})
)

func init() {
	prometheus.MustRegister(PageViews, FeedLoads, Enrollments, GridCards)
}

// MetricsHandler exposes the Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HandleHealthz is the liveness probe.
func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
