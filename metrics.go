package tendon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stepDuration tracks the wall time of World.Step
	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tendon_step_duration_seconds",
		Help:    "World step duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs to ~330ms
	})

	// solverIterations tracks the iterations used per substep, before early exit
	solverIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tendon_solver_iterations",
		Help:    "Joint solver iterations used per substep by pass",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"pass"})

	jointBreaks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tendon_joint_breaks_total",
		Help: "Total joints broken by their force or torque threshold",
	})

	enabledJoints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tendon_enabled_joints",
		Help: "Enabled joints at the end of the last step",
	})

	awakeBodies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tendon_awake_bodies",
		Help: "Awake dynamic bodies at the end of the last step",
	})
)
