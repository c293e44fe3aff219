package handler

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/kiranshivaraju/integrityos/internal/api/response"
	"github.com/kiranshivaraju/integrityos/internal/classifier"
	"github.com/kiranshivaraju/integrityos/internal/store"
	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// maxBatchItems bounds the size of a batch prediction request.
const maxBatchItems = 1000

// Predictor defines the classifier operations the handlers depend on.
type Predictor interface {
	Predict(ctx context.Context, fv models.FeatureVector) classifier.Prediction
	Train(ctx context.Context, samples []classifier.Sample) (float64, error)
	Bootstrap(ctx context.Context) (float64, error)
	Info() classifier.ModelInfo
}

// LabeledInspections supplies training data.
type LabeledInspections interface {
	ListInspections(ctx context.Context, filter store.InspectionFilter) ([]models.Inspection, error)
}

type predictRequest struct {
	models.FeatureInput
	Method string `json:"method,omitempty"`
}

type predictResponse struct {
	classifier.Prediction
	Timestamp time.Time `json:"timestamp"`
}

type batchItem struct {
	ItemID int    `json:"item_id"`
	Method string `json:"method,omitempty"`
	classifier.Prediction
}

type batchSummary struct {
	TotalItems       int                      `json:"total_items"`
	Distribution     map[models.RiskLabel]int `json:"predictions_distribution"`
	HighestRiskCount int                      `json:"highest_risk_count"`
}

type trainResponse struct {
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	Accuracy        float64   `json:"accuracy"`
	TrainingSamples int       `json:"training_samples"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewPredictHandler returns an http.HandlerFunc for POST /api/v1/predict.
// Absent features take their defaults. The endpoint always answers 200 for a
// well-formed body; model faults are reported in the prediction's error field.
func NewPredictHandler(p Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		if err := decodeBody(w, r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid JSON body", nil)
			return
		}

		response.JSON(w, predictResponse{
			Prediction: p.Predict(r.Context(), req.Vector()),
			Timestamp:  time.Now().UTC(),
		})
	}
}

// NewPredictBatchHandler returns an http.HandlerFunc for POST /api/v1/predict/batch.
func NewPredictBatchHandler(p Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Items []predictRequest `json:"items"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid JSON body", nil)
			return
		}
		if len(req.Items) == 0 {
			response.Validation(w, "items must not be empty", nil)
			return
		}
		if len(req.Items) > maxBatchItems {
			response.Validation(w, fmt.Sprintf("at most %d items per batch", maxBatchItems), nil)
			return
		}

		summary := batchSummary{
			TotalItems:   len(req.Items),
			Distribution: make(map[models.RiskLabel]int, models.NumRiskLabels),
		}
		for _, l := range models.RiskLabels {
			summary.Distribution[l] = 0
		}

		results := make([]batchItem, 0, len(req.Items))
		for i, item := range req.Items {
			pred := p.Predict(r.Context(), item.Vector())
			summary.Distribution[pred.Label]++
			results = append(results, batchItem{ItemID: i, Method: item.Method, Prediction: pred})
		}
		summary.HighestRiskCount = summary.Distribution[models.RiskHigh]

		response.JSON(w, map[string]any{
			"results": results,
			"summary": summary,
		})
	}
}

// NewTrainHandler returns an http.HandlerFunc for POST /api/v1/predict/train.
// The model is retrained on every labeled inspection in the store.
func NewTrainHandler(p Predictor, src LabeledInspections) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inspections, err := src.ListInspections(r.Context(), store.InspectionFilter{Labeled: true})
		if err != nil {
			writeError(w, r, fmt.Errorf("list labeled inspections: %w", err))
			return
		}
		samples := classifier.SamplesFromInspections(inspections)

		accuracy, err := p.Train(r.Context(), samples)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, trainResponse{
			Status:          "success",
			Source:          models.ArtifactSourceLabeled,
			Accuracy:        round3(accuracy),
			TrainingSamples: len(samples),
			Timestamp:       time.Now().UTC(),
		})
	}
}

// NewBootstrapHandler returns an http.HandlerFunc for POST /api/v1/predict/bootstrap.
func NewBootstrapHandler(p Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accuracy, err := p.Bootstrap(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, trainResponse{
			Status:          "success",
			Source:          models.ArtifactSourceSynthetic,
			Accuracy:        round3(accuracy),
			TrainingSamples: classifier.SyntheticSampleCount,
			Timestamp:       time.Now().UTC(),
		})
	}
}

// NewModelInfoHandler returns an http.HandlerFunc for GET /api/v1/predict/model.
func NewModelInfoHandler(p Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, p.Info())
	}
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
