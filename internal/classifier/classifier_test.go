package classifier_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/integrityos/internal/classifier"
	"github.com/kiranshivaraju/integrityos/internal/store"
	"github.com/kiranshivaraju/integrityos/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── mock artifact store ─────────────────────────────────────────────────────

type memStore struct {
	mu      sync.Mutex
	saved   []*models.ModelArtifact
	loadErr error
	saveErr error
	loads   int
}

func (s *memStore) LoadArtifact(_ context.Context) (*models.ModelArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if len(s.saved) == 0 {
		return nil, store.ErrNotFound
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *memStore) SaveArtifact(_ context.Context, a *models.ModelArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, a)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

var _ classifier.ArtifactStore = (*memStore)(nil)

// ─── mock locker ─────────────────────────────────────────────────────────────

type fakeLocker struct {
	mu       sync.Mutex
	busy     bool
	tokens   map[string]string
	unlocked int
}

func (l *fakeLocker) TryLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return false, nil
	}
	if l.tokens == nil {
		l.tokens = map[string]string{}
	}
	if _, held := l.tokens[key]; held {
		return false, nil
	}
	l.tokens[key] = token
	return true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tokens[key] == token {
		delete(l.tokens, key)
		l.unlocked++
	}
	return nil
}

var _ classifier.Locker = (*fakeLocker)(nil)

// ─── helpers ─────────────────────────────────────────────────────────────────

var fixedVectors = []models.FeatureVector{
	{Param1: 0, Param2: 0, Param3: 0, Temperature: 10, Humidity: 40},
	{Param1: 20, Param2: 30, Param3: 5, Temperature: 30, Humidity: 80},
	{Param1: 5, Param2: 10, Param3: 1, Temperature: 20, Humidity: 60},
	{Param1: 12.5, Param2: 3, Param3: 4.5, Temperature: 15, Humidity: 70},
	{Param1: -100, Param2: 500, Param3: 0, Temperature: -40, Humidity: 0},
}

func labeledSamples(n int, seed uint64) []classifier.Sample {
	return classifier.SyntheticSamples(n, seed)
}

func bootstrapped(t *testing.T) (*classifier.Classifier, *memStore) {
	t.Helper()
	s := &memStore{}
	c := classifier.New(s)
	_, err := c.Bootstrap(context.Background())
	require.NoError(t, err)
	return c, s
}

func maxLabel(p map[models.RiskLabel]float64) models.RiskLabel {
	best := models.RiskNormal
	for _, l := range models.RiskLabels[1:] {
		if p[l] > p[best] {
			best = l
		}
	}
	return best
}

// ─── Predict ─────────────────────────────────────────────────────────────────

func TestPredict_ProbabilitiesSumToOneAndMatchLabel(t *testing.T) {
	c, _ := bootstrapped(t)

	for _, fv := range fixedVectors {
		p := c.Predict(context.Background(), fv)
		require.Empty(t, p.Error)

		var sum float64
		for _, l := range models.RiskLabels {
			prob, ok := p.Probabilities[l]
			require.True(t, ok, "missing probability for %s", l)
			assert.GreaterOrEqual(t, prob, 0.0)
			assert.LessOrEqual(t, prob, 1.0)
			sum += prob
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
		assert.Equal(t, maxLabel(p.Probabilities), p.Label)
		assert.Equal(t, fv, p.Features)
		assert.Equal(t, classifier.Recommendations[p.Label], p.Recommendation)
	}
}

func TestPredict_ExtremeVectors(t *testing.T) {
	c, _ := bootstrapped(t)
	ctx := context.Background()

	low := c.Predict(ctx, models.FeatureVector{Param1: 0, Param2: 0, Param3: 0, Temperature: 10, Humidity: 40})
	assert.Equal(t, models.RiskNormal, low.Label)
	assert.Equal(t, "Scheduled maintenance", low.Recommendation)

	high := c.Predict(ctx, models.FeatureVector{Param1: 20, Param2: 30, Param3: 5, Temperature: 30, Humidity: 80})
	assert.Equal(t, models.RiskHigh, high.Label)
	assert.Equal(t, "Urgent inspection required", high.Recommendation)
}

func TestPredict_AutoBootstrapsWhenStoreEmpty(t *testing.T) {
	s := &memStore{}
	c := classifier.New(s)
	require.Nil(t, c.Model())

	p := c.Predict(context.Background(), fixedVectors[2])
	assert.Empty(t, p.Error)
	require.NotNil(t, p.ModelID)

	require.Equal(t, 1, s.count(), "bootstrap model should be persisted")
	assert.Equal(t, models.ArtifactSourceSynthetic, s.saved[0].Source)
	assert.Equal(t, *p.ModelID, s.saved[0].ID)
	assert.Equal(t, classifier.SyntheticSampleCount, s.saved[0].Samples)
}

func TestPredict_AutoLoadsStoredModel(t *testing.T) {
	trained, s := bootstrapped(t)

	c := classifier.New(s)
	p := c.Predict(context.Background(), fixedVectors[3])

	require.NotNil(t, p.ModelID)
	assert.Equal(t, trained.Model().ID, *p.ModelID)
	assert.Equal(t, 1, s.count(), "loading must not write a new artifact")
}

func TestPredict_NonFiniteFeaturesReturnSafeDefault(t *testing.T) {
	c, _ := bootstrapped(t)

	for _, fv := range []models.FeatureVector{
		{Param1: math.NaN(), Temperature: 20, Humidity: 60},
		{Param2: math.Inf(1), Temperature: 20, Humidity: 60},
		{Humidity: math.Inf(-1)},
	} {
		p := c.Predict(context.Background(), fv)
		assert.Equal(t, models.RiskNormal, p.Label)
		assert.Equal(t, map[models.RiskLabel]float64{
			models.RiskNormal: 1, models.RiskMedium: 0, models.RiskHigh: 0,
		}, p.Probabilities)
		assert.NotEmpty(t, p.Error)
		assert.Nil(t, p.ModelID)
	}
}

func TestPredict_CorruptArtifactIsHealedByBootstrap(t *testing.T) {
	s := &memStore{saved: []*models.ModelArtifact{{
		ID:     uuid.New(),
		Source: models.ArtifactSourceLabeled,
		Blob:   []byte("not a model"),
	}}}
	c := classifier.New(s)

	p := c.Predict(context.Background(), fixedVectors[0])
	assert.Empty(t, p.Error)
	require.NotNil(t, p.ModelID)
	assert.Equal(t, models.ArtifactSourceSynthetic, c.Model().Source)
	assert.Equal(t, 2, s.count())
}

func TestPredict_StoreOutageStillAnswers(t *testing.T) {
	s := &memStore{loadErr: errors.New("connection refused"), saveErr: errors.New("connection refused")}
	c := classifier.New(s)

	p := c.Predict(context.Background(), fixedVectors[2])
	assert.Empty(t, p.Error)
	assert.NotNil(t, p.ModelID)
	assert.NotNil(t, c.Model())
}

func TestPredict_BootstrapFailureReturnsSafeDefault(t *testing.T) {
	c := classifier.New(&memStore{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := c.Predict(ctx, fixedVectors[2])
	assert.Equal(t, models.RiskNormal, p.Label)
	assert.InDelta(t, 1.0, p.Probabilities[models.RiskNormal], 1e-12)
	assert.Contains(t, p.Error, "model unavailable")
	assert.Nil(t, c.Model())
}

// ─── Bootstrap ───────────────────────────────────────────────────────────────

func TestBootstrap_Deterministic(t *testing.T) {
	ctx := context.Background()
	a := classifier.New(&memStore{})
	b := classifier.New(&memStore{})

	accA, err := a.Bootstrap(ctx)
	require.NoError(t, err)
	accB, err := b.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, accA, accB)
	assert.Greater(t, accA, 0.8)
	assert.LessOrEqual(t, accA, 1.0)

	for _, fv := range fixedVectors {
		pa, pb := a.Predict(ctx, fv), b.Predict(ctx, fv)
		assert.Equal(t, pa.Label, pb.Label)
		assert.Equal(t, pa.Probabilities, pb.Probabilities)
	}

	// A second bootstrap on the same classifier reproduces the first.
	again, err := a.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, accA, again)
}

// ─── Train ───────────────────────────────────────────────────────────────────

func TestTrain_InsufficientData(t *testing.T) {
	s := &memStore{}
	c := classifier.New(s)

	for _, n := range []int{0, 1, 9} {
		_, err := c.Train(context.Background(), labeledSamples(n, 7))
		assert.ErrorIs(t, err, classifier.ErrInsufficientData)
	}
	assert.Equal(t, 0, s.count())
	assert.Nil(t, c.Model(), "train must not fall back to synthetic data")
}

func TestTrain_Succeeds(t *testing.T) {
	s := &memStore{}
	c := classifier.New(s)

	for _, n := range []int{10, 60} {
		acc, err := c.Train(context.Background(), labeledSamples(n, 7))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, acc, 0.0)
		assert.LessOrEqual(t, acc, 1.0)

		m := c.Model()
		require.NotNil(t, m)
		assert.Equal(t, models.ArtifactSourceLabeled, m.Source)
		assert.Equal(t, n, m.Samples)
	}
	assert.Equal(t, 2, s.count())
}

func TestTrain_LargeMagnitudeFeatures(t *testing.T) {
	ctx := context.Background()
	samples := make([]classifier.Sample, 12)
	for i := range samples {
		samples[i] = classifier.Sample{
			Features: models.FeatureVector{Param1: float64(i) * 1e200, Temperature: 20, Humidity: 60},
			Label:    models.RiskLabels[i/4],
		}
	}

	s := &memStore{}
	acc, err := classifier.New(s).Train(ctx, samples)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 1.0)
	assert.Equal(t, 1, s.count())

	fresh := classifier.New(s)
	require.NoError(t, fresh.Load(ctx))
	require.NotNil(t, fresh.Model())
	assert.Equal(t, 12, fresh.Model().Samples)
}

func TestTrain_InvalidSample(t *testing.T) {
	samples := labeledSamples(20, 7)
	samples[4].Features.Param3 = math.NaN()

	_, err := classifier.New(&memStore{}).Train(context.Background(), samples)
	assert.ErrorIs(t, err, classifier.ErrInvalidSample)
}

func TestTrain_SaveFailureKeepsPreviousModel(t *testing.T) {
	c, s := bootstrapped(t)
	previous := c.Model()

	s.mu.Lock()
	s.saveErr = errors.New("disk full")
	s.mu.Unlock()

	_, err := c.Train(context.Background(), labeledSamples(40, 3))
	require.Error(t, err)
	assert.Same(t, previous, c.Model())
}

func TestTrain_RunCounters(t *testing.T) {
	success := classifier.TrainingRunsTotal.WithLabelValues(models.ArtifactSourceLabeled, "success")
	failure := classifier.TrainingRunsTotal.WithLabelValues(models.ArtifactSourceLabeled, "error")

	c, s := bootstrapped(t)
	okBefore, errBefore := testutil.ToFloat64(success), testutil.ToFloat64(failure)

	_, err := c.Train(context.Background(), labeledSamples(20, 5))
	require.NoError(t, err)
	assert.Equal(t, okBefore+1, testutil.ToFloat64(success))
	assert.Equal(t, errBefore, testutil.ToFloat64(failure))

	s.mu.Lock()
	s.saveErr = errors.New("disk full")
	s.mu.Unlock()

	_, err = c.Train(context.Background(), labeledSamples(20, 5))
	require.Error(t, err)
	assert.Equal(t, okBefore+1, testutil.ToFloat64(success), "a run that fails to save is not a success")
	assert.Equal(t, errBefore+1, testutil.ToFloat64(failure))
}

func TestTrain_RoundTripReproducesLabels(t *testing.T) {
	ctx := context.Background()
	samples := labeledSamples(80, 11)
	s := &memStore{}

	trained := classifier.New(s)
	_, err := trained.Train(ctx, samples)
	require.NoError(t, err)

	loaded := classifier.New(s)
	require.NoError(t, loaded.Load(ctx))
	require.NotNil(t, loaded.Model())
	assert.Equal(t, trained.Model().ID, loaded.Model().ID)

	for _, sample := range samples {
		want := trained.Predict(ctx, sample.Features)
		got := loaded.Predict(ctx, sample.Features)
		assert.Equal(t, want.Label, got.Label)
		assert.Equal(t, want.Probabilities, got.Probabilities)
	}
}

// ─── Writer lock ─────────────────────────────────────────────────────────────

func TestTrain_LockHeldElsewhere(t *testing.T) {
	s := &memStore{}
	c := classifier.New(s, classifier.WithLocker(&fakeLocker{busy: true}, "lock:model", time.Minute))

	_, err := c.Train(context.Background(), labeledSamples(20, 1))
	assert.ErrorIs(t, err, classifier.ErrTrainingInProgress)

	_, err = c.Bootstrap(context.Background())
	assert.ErrorIs(t, err, classifier.ErrTrainingInProgress)
	assert.Equal(t, 0, s.count())
}

func TestTrain_ReleasesLock(t *testing.T) {
	locker := &fakeLocker{}
	c := classifier.New(&memStore{}, classifier.WithLocker(locker, "lock:model", time.Minute))

	_, err := c.Train(context.Background(), labeledSamples(20, 1))
	require.NoError(t, err)
	_, err = c.Bootstrap(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, locker.unlocked)
	assert.Empty(t, locker.tokens)
}

func TestPredict_AutoBootstrapWithBusyLockServesFromMemory(t *testing.T) {
	s := &memStore{}
	c := classifier.New(s, classifier.WithLocker(&fakeLocker{busy: true}, "lock:model", time.Minute))

	p := c.Predict(context.Background(), fixedVectors[1])
	assert.Empty(t, p.Error)
	assert.NotNil(t, p.ModelID)
	assert.Equal(t, 0, s.count())
}

// ─── Load / Save / Info ──────────────────────────────────────────────────────

func TestLoad_EmptyStoreLeavesModelUnset(t *testing.T) {
	c := classifier.New(&memStore{})
	require.NoError(t, c.Load(context.Background()))
	assert.Nil(t, c.Model())
}

func TestLoad_StoreErrorPropagates(t *testing.T) {
	c := classifier.New(&memStore{loadErr: errors.New("timeout")})
	assert.Error(t, c.Load(context.Background()))
}

func TestSave_NoModel(t *testing.T) {
	err := classifier.New(&memStore{}).Save(context.Background())
	assert.ErrorIs(t, err, classifier.ErrNoModel)
}

func TestSave_PersistsActiveModel(t *testing.T) {
	c, s := bootstrapped(t)
	require.NoError(t, c.Save(context.Background()))
	assert.Equal(t, 2, s.count())
	assert.Equal(t, c.Model().ID, s.saved[1].ID)
}

func TestInfo(t *testing.T) {
	c := classifier.New(&memStore{})

	info := c.Info()
	assert.Equal(t, "random_forest", info.ModelType)
	assert.Equal(t, []string{"param1", "param2", "param3", "temperature", "humidity"}, info.Features)
	assert.Equal(t, []models.RiskLabel{models.RiskNormal, models.RiskMedium, models.RiskHigh}, info.Labels)
	assert.Equal(t, 100, info.Trees)
	assert.False(t, info.Loaded)
	assert.Nil(t, info.ModelID)

	_, err := c.Bootstrap(context.Background())
	require.NoError(t, err)

	info = c.Info()
	assert.True(t, info.Loaded)
	require.NotNil(t, info.ModelID)
	assert.Equal(t, models.ArtifactSourceSynthetic, info.Source)
	assert.Equal(t, 500, info.Samples)
	assert.NotNil(t, info.TrainedAt)
}

// ─── Concurrency ─────────────────────────────────────────────────────────────

func TestPredict_ConcurrentWithRetraining(t *testing.T) {
	c, _ := bootstrapped(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.Train(ctx, labeledSamples(50, 99))
		assert.NoError(t, err)
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				p := c.Predict(ctx, fixedVectors[j%len(fixedVectors)])
				assert.Empty(t, p.Error)
				assert.NotNil(t, p.ModelID)
				var sum float64
				for _, v := range p.Probabilities {
					sum += v
				}
				assert.InDelta(t, 1.0, sum, 1e-6)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, models.ArtifactSourceLabeled, c.Model().Source)
}

func TestPredict_ConcurrentFirstUseBootstrapsOnce(t *testing.T) {
	s := &memStore{}
	c := classifier.New(s)

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 6)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := c.Predict(context.Background(), fixedVectors[i%len(fixedVectors)])
			if p.ModelID != nil {
				ids[i] = *p.ModelID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, s.count())
}
