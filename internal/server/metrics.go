package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "krotov_jobs_started_total",
		Help: "Number of optimization jobs started.",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "krotov_jobs_finished_total",
		Help: "Number of optimization jobs finished, by terminal status.",
	}, []string{"status"})

	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "krotov_jobs_running",
		Help: "Number of optimization jobs currently running.",
	})

	iterationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "krotov_iteration_seconds",
		Help:    "Wall-clock duration of a single optimization iteration.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	finalInfidelity = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "krotov_final_infidelity",
		Help:    "Average infidelity at job completion.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 10, 7),
	})
)
