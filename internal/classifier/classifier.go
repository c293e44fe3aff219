// Package classifier assigns risk labels to inspection measurements using a bagged
// decision-tree ensemble, and manages the lifecycle of the persisted model.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/integrityos/internal/store"
	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// ModelType names the learning algorithm in ModelInfo.
const ModelType = "random_forest"

// ArtifactStore persists model artifacts. LoadArtifact returns the most recently saved
// artifact, or store.ErrNotFound when there is none.
type ArtifactStore interface {
	LoadArtifact(ctx context.Context) (*models.ModelArtifact, error)
	SaveArtifact(ctx context.Context, a *models.ModelArtifact) error
}

// Locker provides a lock shared between service instances.
type Locker interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// Recommendations maps each label to the maintenance action shown with a prediction.
var Recommendations = map[models.RiskLabel]string{
	models.RiskNormal: "Scheduled maintenance",
	models.RiskMedium: "Additional monitoring required",
	models.RiskHigh:   "Urgent inspection required",
}

// Prediction is the result of classifying one feature vector. Error is set when the
// prediction is the safe default rather than a model output.
type Prediction struct {
	Label          models.RiskLabel             `json:"prediction"`
	Probabilities  map[models.RiskLabel]float64 `json:"probabilities"`
	Features       models.FeatureVector         `json:"features_used"`
	Recommendation string                       `json:"recommendation"`
	ModelID        *uuid.UUID                   `json:"model_id,omitempty"`
	Error          string                       `json:"error,omitempty"`
}

// ModelInfo describes the classifier and its active model.
type ModelInfo struct {
	ModelType string             `json:"model_type"`
	Features  []string           `json:"features"`
	Labels    []models.RiskLabel `json:"target_labels"`
	Trees     int                `json:"n_estimators"`
	MaxDepth  int                `json:"max_depth"`
	Loaded    bool               `json:"loaded"`
	ModelID   *uuid.UUID         `json:"model_id,omitempty"`
	Source    string             `json:"source,omitempty"`
	Samples   int                `json:"samples,omitempty"`
	Accuracy  float64            `json:"accuracy,omitempty"`
	TrainedAt *time.Time         `json:"trained_at,omitempty"`
}

// Classifier holds the active model and coordinates its replacement.
// Readers never block: the active model is swapped atomically after a new one has been
// persisted. Writers are serialized within the process and, when a Locker is configured,
// across instances.
type Classifier struct {
	store   ArtifactStore
	locker  Locker
	lockKey string
	lockTTL time.Duration

	mu     sync.Mutex
	active atomic.Pointer[Model]
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLocker makes training and bootstrapping take the shared lock key for at most ttl.
func WithLocker(l Locker, key string, ttl time.Duration) Option {
	return func(c *Classifier) {
		c.locker = l
		c.lockKey = key
		c.lockTTL = ttl
	}
}

// New creates a Classifier backed by s. No model is loaded until Load, Train, Bootstrap or
// the first Predict.
func New(s ArtifactStore, opts ...Option) *Classifier {
	c := &Classifier{store: s}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the active model, or nil when none is loaded.
func (c *Classifier) Model() *Model {
	return c.active.Load()
}

// Predict classifies fv. It never fails: without a model it loads or bootstraps one first,
// and any internal fault yields the normal label with all probability on normal and a
// diagnostic in Prediction.Error.
func (c *Classifier) Predict(ctx context.Context, fv models.FeatureVector) (p Prediction) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("prediction panicked", "panic", r)
			p = safeDefault(fv, fmt.Sprintf("prediction fault: %v", r))
		}
	}()

	if err := checkFinite(fv); err != nil {
		return safeDefault(fv, err.Error())
	}

	m, err := c.ensureModel(ctx)
	if err != nil {
		slog.Error("risk model unavailable", "error", err)
		return safeDefault(fv, fmt.Sprintf("model unavailable: %v", err))
	}

	label, probs := m.Predict(fv)
	PredictionsTotal.WithLabelValues(label.String()).Inc()
	id := m.ID
	return Prediction{
		Label:          label,
		Probabilities:  probabilityMap(probs),
		Features:       fv,
		Recommendation: Recommendations[label],
		ModelID:        &id,
	}
}

// Train fits a model on labeled samples, persists it and makes it active. It fails with
// ErrInsufficientData for fewer than MinTrainingSamples samples and never substitutes
// synthetic data.
func (c *Classifier) Train(ctx context.Context, samples []Sample) (float64, error) {
	if len(samples) < MinTrainingSamples {
		return 0, fmt.Errorf("%w: got %d, need %d", ErrInsufficientData, len(samples), MinTrainingSamples)
	}
	m, err := c.fitAndSwap(ctx, models.ArtifactSourceLabeled, func(ctx context.Context) (*Model, error) {
		return Fit(ctx, samples, models.ArtifactSourceLabeled)
	})
	if err != nil {
		return 0, err
	}
	return m.Accuracy, nil
}

// Bootstrap fits a model on SyntheticSampleCount generated samples, persists it and makes
// it active. The result is deterministic.
func (c *Classifier) Bootstrap(ctx context.Context) (float64, error) {
	m, err := c.fitAndSwap(ctx, models.ArtifactSourceSynthetic, bootstrapModel)
	if err != nil {
		return 0, err
	}
	return m.Accuracy, nil
}

// Load makes the latest stored artifact active. A missing or unreadable artifact leaves
// the current state unchanged and is not an error.
func (c *Classifier) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.loadLocked(ctx)
	if err != nil {
		return err
	}
	if m != nil {
		c.activate(m)
	}
	return nil
}

// Save persists the active model.
func (c *Classifier) Save(ctx context.Context) error {
	m := c.active.Load()
	if m == nil {
		return ErrNoModel
	}
	return c.save(ctx, m)
}

// Info describes the classifier configuration and the active model.
func (c *Classifier) Info() ModelInfo {
	info := ModelInfo{
		ModelType: ModelType,
		Features:  models.FeatureNames[:],
		Labels:    models.RiskLabels[:],
		Trees:     NumTrees,
		MaxDepth:  MaxDepth,
	}
	if m := c.active.Load(); m != nil {
		id, created := m.ID, m.CreatedAt
		info.Loaded = true
		info.ModelID = &id
		info.Source = m.Source
		info.Samples = m.Samples
		info.Accuracy = m.Accuracy
		info.TrainedAt = &created
	}
	return info
}

// ensureModel returns the active model, initializing it from the store or from synthetic
// data on first use.
func (c *Classifier) ensureModel(ctx context.Context) (*Model, error) {
	if m := c.active.Load(); m != nil {
		return m, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m := c.active.Load(); m != nil {
		return m, nil
	}

	m, err := c.loadLocked(ctx)
	if err != nil {
		slog.Warn("loading risk model failed, bootstrapping", "error", err)
	}
	if m != nil {
		c.activate(m)
		return m, nil
	}

	slog.Info("no stored risk model, bootstrapping from synthetic data")
	m, err = c.timedFit(ctx, models.ArtifactSourceSynthetic, bootstrapModel)
	if err != nil {
		return nil, err
	}

	// Another instance may be writing right now. Its bootstrap is identical, so serve
	// ours from memory and leave persistence to the lock holder.
	release, err := c.acquire(ctx)
	switch {
	case errors.Is(err, ErrTrainingInProgress):
		slog.Info("model writer busy, using in-memory bootstrap model")
	case err != nil:
		slog.Warn("model writer lock failed, using in-memory bootstrap model", "error", err)
	default:
		if err := c.save(ctx, m); err != nil {
			slog.Warn("persisting bootstrap model failed", "error", err)
		}
		release()
	}

	c.activate(m)
	TrainingRunsTotal.WithLabelValues(models.ArtifactSourceSynthetic, "success").Inc()
	return m, nil
}

func (c *Classifier) fitAndSwap(ctx context.Context, source string, fit func(context.Context) (*Model, error)) (*Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	release, err := c.acquire(ctx)
	if err != nil {
		TrainingRunsTotal.WithLabelValues(source, "busy").Inc()
		return nil, err
	}
	defer release()

	m, err := c.timedFit(ctx, source, fit)
	if err != nil {
		return nil, err
	}
	if err := c.save(ctx, m); err != nil {
		TrainingRunsTotal.WithLabelValues(source, "error").Inc()
		return nil, err
	}
	c.activate(m)
	TrainingRunsTotal.WithLabelValues(source, "success").Inc()

	slog.Info("risk model trained",
		"model_id", m.ID, "source", source, "samples", m.Samples, "accuracy", m.Accuracy)
	return m, nil
}

func (c *Classifier) timedFit(ctx context.Context, source string, fit func(context.Context) (*Model, error)) (*Model, error) {
	start := time.Now()
	m, err := fit(ctx)
	TrainingDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		TrainingRunsTotal.WithLabelValues(source, "error").Inc()
		return nil, err
	}
	return m, nil
}

// acquire takes the cross-instance writer lock when one is configured.
func (c *Classifier) acquire(ctx context.Context) (func(), error) {
	if c.locker == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	ok, err := c.locker.TryLock(ctx, c.lockKey, token, c.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire model writer lock: %w", err)
	}
	if !ok {
		return nil, ErrTrainingInProgress
	}
	return func() {
		// The request context may already be cancelled; the lock must still go.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.locker.Unlock(ctx, c.lockKey, token); err != nil {
			slog.Warn("release model writer lock failed", "error", err)
		}
	}, nil
}

// loadLocked reads and decodes the stored artifact. It returns a nil model when the
// artifact is absent or unusable. Must be called with c.mu held.
func (c *Classifier) loadLocked(ctx context.Context) (*Model, error) {
	a, err := c.store.LoadArtifact(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if errors.Is(err, store.ErrCorruptArtifact) {
		slog.Warn("stored risk model is corrupt, ignoring", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model artifact: %w", err)
	}

	m, err := ModelFromArtifact(a)
	if err != nil {
		slog.Warn("stored risk model is unusable, ignoring", "artifact_id", a.ID, "error", err)
		return nil, nil
	}
	slog.Info("risk model loaded", "model_id", m.ID, "source", m.Source, "accuracy", m.Accuracy)
	return m, nil
}

func (c *Classifier) save(ctx context.Context, m *Model) error {
	a, err := m.Artifact()
	if err != nil {
		return err
	}
	if err := c.store.SaveArtifact(ctx, a); err != nil {
		return fmt.Errorf("save model artifact: %w", err)
	}
	return nil
}

func (c *Classifier) activate(m *Model) {
	c.active.Store(m)
	ModelAccuracy.Set(m.Accuracy)
}

func bootstrapModel(ctx context.Context) (*Model, error) {
	return Fit(ctx, SyntheticSamples(SyntheticSampleCount, Seed), models.ArtifactSourceSynthetic)
}

func safeDefault(fv models.FeatureVector, note string) Prediction {
	PredictionFaultsTotal.Inc()
	return Prediction{
		Label:          models.RiskNormal,
		Probabilities:  probabilityMap([models.NumRiskLabels]float64{1, 0, 0}),
		Features:       fv,
		Recommendation: Recommendations[models.RiskNormal],
		Error:          note,
	}
}

func probabilityMap(p [models.NumRiskLabels]float64) map[models.RiskLabel]float64 {
	out := make(map[models.RiskLabel]float64, models.NumRiskLabels)
	for _, l := range models.RiskLabels {
		out[l] = p[l]
	}
	return out
}
