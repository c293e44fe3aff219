package classifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal counts answered predictions.
	// Labels: label (normal, medium, high)
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "integrityos",
			Subsystem: "classifier",
			Name:      "predictions_total",
			Help:      "Total number of risk predictions by predicted label",
		},
		[]string{"label"},
	)

	// PredictionFaultsTotal counts predictions answered with the safe default.
	PredictionFaultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "integrityos",
			Subsystem: "classifier",
			Name:      "prediction_faults_total",
			Help:      "Total number of predictions that fell back to the safe default",
		},
	)

	// TrainingRunsTotal counts model fits.
	// Labels: source (synthetic, labeled), result (success, error, busy)
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "integrityos",
			Subsystem: "classifier",
			Name:      "training_runs_total",
			Help:      "Total number of training runs",
		},
		[]string{"source", "result"},
	)

	// TrainingDuration tracks how long fitting and persisting a model takes.
	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "integrityos",
			Subsystem: "classifier",
			Name:      "training_duration_seconds",
			Help:      "Duration of training runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// ModelAccuracy is the training-set accuracy of the active model.
	ModelAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "integrityos",
			Subsystem: "classifier",
			Name:      "model_accuracy",
			Help:      "Training-set accuracy of the active model",
		},
	)
)
