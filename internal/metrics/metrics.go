// Package metrics holds the Prometheus collectors for the attendance engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MatchDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "match_decisions_total",
			Help:      "Match decisions per probe face",
		},
		[]string{"outcome"}, // "accepted" / "rejected"
	)

	MatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "match_duration_seconds",
			Help:      "Time spent matching one probe against the identity snapshot",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	AttendanceWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "writes_total",
			Help:      "Attendance record writes and duplicate suppressions",
		},
		[]string{"result"}, // "written" / "duplicate"
	)

	EnrollmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "enrollments_total",
			Help:      "Enrollment attempts",
		},
		[]string{"status"}, // "ok" / "conflict" / "no_face" / "error"
	)

	DetectorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "detector_requests_total",
			Help:      "Requests to the face detector service",
		},
		[]string{"status"}, // "ok" / "error"
	)
)

var registered bool

// Register registers all collectors. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(MatchDecisionsTotal)
	prometheus.MustRegister(MatchDuration)
	prometheus.MustRegister(AttendanceWritesTotal)
	prometheus.MustRegister(EnrollmentsTotal)
	prometheus.MustRegister(DetectorRequestsTotal)
	registered = true
}
