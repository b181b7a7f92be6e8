// Package metrics exposes Prometheus metrics for forecasting and scheduling.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for our application
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// ForecastsTotal counts forecast requests by outcome (ok, not_found, malformed, error).
var ForecastsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "covers",
	Name:      "forecasts_total",
	Help:      "Forecast requests by outcome",
}, []string{"outcome"})

// ForecastCacheTotal counts cache lookups by result (hit, miss, error).
var ForecastCacheTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "covers",
	Name:      "forecast_cache_total",
	Help:      "Forecast cache lookups by result",
}, []string{"result"})

// PredictedCovers tracks the distribution of predicted covers.
var PredictedCovers = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "covers",
	Name:      "predicted",
	Help:      "Covers predicted per forecast",
	Buckets:   []float64{0, 10, 25, 50, 100, 200, 300, 400, 600, 800},
})

// StaffDemanded counts staff requested per role across scheduling runs.
var StaffDemanded = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "staff_demanded_total",
	Help:      "Staff requested by role",
}, []string{"role"})

// StaffMatched counts staff selected per role.
var StaffMatched = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "staff_matched_total",
	Help:      "Staff matched by role",
}, []string{"role"})

// StaffUnfilled counts requested positions left empty per role.
var StaffUnfilled = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "staff_unfilled_total",
	Help:      "Requested staff that could not be matched, by role",
}, []string{"role"})

// DirectoryErrors counts failed directory queries per role.
var DirectoryErrors = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "directory_errors_total",
	Help:      "Staff directory query failures by role",
}, []string{"role"})

// ScheduleDurationSeconds tracks time to plan and match a shift.
var ScheduleDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "scheduler",
	Name:      "duration_seconds",
	Help:      "Time taken to schedule a shift",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
})

// NotificationsTotal counts notification deliveries by backend and outcome (sent, failed, dropped).
var NotificationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "notify",
	Name:      "notifications_total",
	Help:      "Staff notifications by backend and outcome",
}, []string{"backend", "outcome"})
