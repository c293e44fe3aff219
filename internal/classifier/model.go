package classifier

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// Sample is one labeled training example.
type Sample struct {
	Features models.FeatureVector
	Label    models.RiskLabel
}

// Model is an immutable trained classifier together with the scaler it was fitted with.
// It is safe for concurrent use.
type Model struct {
	ID        uuid.UUID
	Source    string
	Samples   int
	Accuracy  float64
	CreatedAt time.Time

	scaler Scaler
	forest *forest
}

// Fit standardizes the samples and trains a forest on them with the fixed seed.
// Accuracy is measured on the training set itself.
func Fit(ctx context.Context, samples []Sample, source string) (*Model, error) {
	if len(samples) < MinTrainingSamples {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrInsufficientData, len(samples), MinTrainingSamples)
	}

	raw := make([]vector, len(samples))
	y := make([]models.RiskLabel, len(samples))
	for i, s := range samples {
		if err := checkFinite(s.Features); err != nil {
			return nil, fmt.Errorf("%w: sample %d: %v", ErrInvalidSample, i, err)
		}
		if !s.Label.Valid() {
			return nil, fmt.Errorf("%w: sample %d: invalid label %d", ErrInvalidSample, i, int(s.Label))
		}
		raw[i] = s.Features.Array()
		y[i] = s.Label
	}

	scaler := FitScaler(raw)
	if !scaler.valid() {
		return nil, fmt.Errorf("%w: feature range exceeds float64 precision", ErrInvalidSample)
	}
	x := make([]vector, len(raw))
	for i, r := range raw {
		x[i] = scaler.Transform(r)
		if err := checkFinite(models.FeatureVectorFromArray(x[i])); err != nil {
			return nil, fmt.Errorf("%w: sample %d: feature range exceeds float64 precision", ErrInvalidSample, i)
		}
	}

	f, err := fitForest(ctx, x, y, Seed)
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	correct := 0
	for i := range x {
		if argmax(f.proba(x[i])) == y[i] {
			correct++
		}
	}

	return &Model{
		ID:        uuid.New(),
		Source:    source,
		Samples:   len(samples),
		Accuracy:  float64(correct) / float64(len(samples)),
		CreatedAt: time.Now().UTC(),
		scaler:    scaler,
		forest:    f,
	}, nil
}

// Predict returns the most probable label and the per-label probabilities for fv.
// The caller is responsible for rejecting non-finite features.
func (m *Model) Predict(fv models.FeatureVector) (models.RiskLabel, [models.NumRiskLabels]float64) {
	p := m.forest.proba(m.scaler.Transform(fv.Array()))
	return argmax(p), p
}

func checkFinite(fv models.FeatureVector) error {
	for j, v := range fv.Array() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %s is not a finite number", models.FeatureNames[j])
		}
	}
	return nil
}

// SamplesFromInspections turns labeled inspections into training samples. Unlabeled
// inspections are skipped.
func SamplesFromInspections(inspections []models.Inspection) []Sample {
	out := make([]Sample, 0, len(inspections))
	for _, insp := range inspections {
		if insp.RiskLabel == nil {
			continue
		}
		out = append(out, Sample{Features: insp.Features(), Label: *insp.RiskLabel})
	}
	return out
}
