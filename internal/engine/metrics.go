package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "episim_steps_total",
		Help: "Total simulation steps executed",
	})

	newCasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episim_new_cases_total",
		Help: "New infections by source (contagion, forced)",
	}, []string{"source"})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "episim_step_duration_seconds",
		Help:    "Duration of each step phase",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 16), // 50µs to ~1.6s
	}, []string{"phase"})

	contactsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "episim_contacts",
		Help: "Sampler contact intensity after the latest step",
	})

	vaccineDosesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "episim_vaccine_doses_total",
		Help: "Vaccine doses distributed by campaigns",
	})
)
