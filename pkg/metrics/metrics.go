// Package metrics exposes the service Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts detection scans by cache outcome.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wastelens",
		Name:      "scans_total",
		Help:      "Detection scans served, by cache outcome.",
	}, []string{"cache"})

	// DetectionsLastScan is the detection count of the most recent scan.
	DetectionsLastScan = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wastelens",
		Name:      "detections_last_scan",
		Help:      "Detections found by the most recent scan.",
	})

	// PotentialSavings is the monthly savings surfaced by the most
	// recent scan, in dollars.
	PotentialSavings = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wastelens",
		Name:      "potential_savings_dollars",
		Help:      "Monthly potential savings of the most recent scan.",
	})

	// ActionsTotal counts executor actions by action name and outcome.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wastelens",
		Name:      "actions_total",
		Help:      "Executor actions, by action and outcome.",
	}, []string{"action", "outcome"})

	// RecommendationsCreated counts recommendations created by ingestion.
	RecommendationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wastelens",
		Name:      "recommendations_created_total",
		Help:      "Recommendations created by ingestion.",
	})

	// DriftTicksTotal counts drift ticks.
	DriftTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wastelens",
		Name:      "drift_ticks_total",
		Help:      "Virtual-day drift ticks applied.",
	})
)

// RecordAction increments ActionsTotal with a success/failure outcome.
func RecordAction(action string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	ActionsTotal.WithLabelValues(action, outcome).Inc()
}
