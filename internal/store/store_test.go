package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/integrityos/internal/store"
	"github.com/kiranshivaraju/integrityos/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("integrity_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func ptr[T any](v T) *T { return &v }

func date(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func createAsset(t *testing.T, s store.Store, pipeline string) *models.Asset {
	t.Helper()
	a := &models.Asset{
		Name:       "Section " + pipeline,
		Type:       models.AssetPipelineSection,
		PipelineID: pipeline,
		Lat:        51.17,
		Lon:        71.43,
		Year:       2015,
		Material:   "steel",
	}
	require.NoError(t, s.CreateAsset(context.Background(), a))
	return a
}

// --- Asset Tests ---

func TestAsset_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	a := createAsset(t, s, "MT-01")
	assert.Positive(t, a.ID)

	got, err := s.GetAsset(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, *a, *got)
}

func TestAsset_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetAsset(context.Background(), 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAsset_ListFiltersByPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	createAsset(t, s, "MT-01")
	createAsset(t, s, "MT-02")
	createAsset(t, s, "MT-01")

	all, err := s.ListAssets(ctx, store.AssetFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Less(t, all[0].ID, all[1].ID)

	mt01, err := s.ListAssets(ctx, store.AssetFilter{PipelineID: "MT-01"})
	require.NoError(t, err)
	assert.Len(t, mt01, 2)

	page, err := s.ListAssets(ctx, store.AssetFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)
}

func TestAsset_Update(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	a := createAsset(t, s, "MT-01")
	a.Name = "Valve 12"
	a.Type = models.AssetValve
	a.Material = "cast iron"
	require.NoError(t, s.UpdateAsset(ctx, a))

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, *a, *got)

	err = s.UpdateAsset(ctx, &models.Asset{ID: 9999, Name: "x", Type: models.AssetValve, PipelineID: "MT-01"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAsset_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	unused := createAsset(t, s, "MT-01")
	require.NoError(t, s.DeleteAsset(ctx, unused.ID))
	_, err := s.GetAsset(ctx, unused.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAsset(ctx, unused.ID), store.ErrNotFound)

	inspected := createAsset(t, s, "MT-02")
	require.NoError(t, s.CreateInspection(ctx, &models.Inspection{
		AssetID: inspected.ID, Method: models.MethodVIK, Date: date("2023-01-15"), QualityGrade: models.QualitySatisfactory,
	}))
	assert.ErrorIs(t, s.DeleteAsset(ctx, inspected.ID), store.ErrAssetInUse)
	_, err = s.GetAsset(ctx, inspected.ID)
	assert.NoError(t, err)
}

// --- Inspection Tests ---

func TestInspection_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	a := createAsset(t, s, "MT-01")

	label := models.RiskHigh
	insp := &models.Inspection{
		AssetID:           a.ID,
		Method:            models.MethodUZK,
		Date:              date("2023-05-10"),
		Temperature:       ptr(18.5),
		DefectFound:       true,
		DefectDescription: ptr("wall thinning"),
		QualityGrade:      models.QualityRequiresAction,
		Param1:            ptr(4.2),
		Param2:            ptr(9.1),
		Param3:            ptr(14.0),
		RiskLabel:         &label,
	}
	require.NoError(t, s.CreateInspection(ctx, insp))
	assert.Positive(t, insp.ID)

	got, err := s.GetInspection(ctx, insp.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.AssetID)
	assert.Equal(t, models.MethodUZK, got.Method)
	assert.True(t, got.Date.Equal(date("2023-05-10")))
	assert.Nil(t, got.Humidity)
	require.NotNil(t, got.RiskLabel)
	assert.Equal(t, models.RiskHigh, *got.RiskLabel)
	assert.Equal(t, "wall thinning", *got.DefectDescription)
}

func TestInspection_UnknownAsset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.CreateInspection(context.Background(), &models.Inspection{
		AssetID:      4242,
		Method:       models.MethodVIK,
		Date:         date("2023-01-01"),
		QualityGrade: models.QualitySatisfactory,
	})
	assert.ErrorIs(t, err, store.ErrInvalidReference)
}

func TestInspection_ListFilters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	a := createAsset(t, s, "MT-01")
	b := createAsset(t, s, "MT-02")
	medium := models.RiskMedium

	for _, insp := range []*models.Inspection{
		{AssetID: a.ID, Method: models.MethodVIK, Date: date("2023-01-15"), QualityGrade: models.QualitySatisfactory},
		{AssetID: a.ID, Method: models.MethodUZK, Date: date("2023-03-20"), DefectFound: true, QualityGrade: models.QualityAcceptable, RiskLabel: &medium},
		{AssetID: b.ID, Method: models.MethodVIK, Date: date("2023-06-01"), DefectFound: true, QualityGrade: models.QualityUnacceptable},
	} {
		require.NoError(t, s.CreateInspection(ctx, insp))
	}

	tests := []struct {
		name   string
		filter store.InspectionFilter
		want   int
	}{
		{"all", store.InspectionFilter{}, 3},
		{"by asset", store.InspectionFilter{AssetID: a.ID}, 2},
		{"by method", store.InspectionFilter{Method: models.MethodVIK}, 2},
		{"date range", store.InspectionFilter{From: date("2023-02-01"), To: date("2023-06-01")}, 2},
		{"defects only", store.InspectionFilter{DefectFound: ptr(true)}, 2},
		{"no defects", store.InspectionFilter{DefectFound: ptr(false)}, 1},
		{"labeled", store.InspectionFilter{Labeled: true}, 1},
		{"limited", store.InspectionFilter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListInspections(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestInspection_RecordEventOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	a := createAsset(t, s, "MT-01")

	event := func() *models.Inspection {
		return &models.Inspection{AssetID: a.ID, Method: models.MethodUZK, Date: date("2023-05-10"), QualityGrade: models.QualityAcceptable}
	}

	first := event()
	created, err := s.RecordInspectionEvent(ctx, "inspections/0/41", first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Positive(t, first.ID)

	created, err = s.RecordInspectionEvent(ctx, "inspections/0/41", event())
	require.NoError(t, err)
	assert.False(t, created)

	created, err = s.RecordInspectionEvent(ctx, "inspections/0/42", event())
	require.NoError(t, err)
	assert.True(t, created)

	all, err := s.ListInspections(ctx, store.InspectionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.RecordInspectionEvent(ctx, "inspections/0/43", &models.Inspection{
		AssetID: 4242, Method: models.MethodVIK, Date: date("2023-01-01"), QualityGrade: models.QualitySatisfactory,
	})
	assert.ErrorIs(t, err, store.ErrInvalidReference)
}

// --- Model Artifact Tests ---

func TestArtifact_LoadEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.LoadArtifact(context.Background())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestArtifact_LatestWinsAndPrunes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	var last *models.ModelArtifact
	for i := 0; i < store.ArtifactRetention+2; i++ {
		last = newArtifact(models.ArtifactSourceLabeled)
		last.CreatedAt = last.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.SaveArtifact(ctx, last))
	}

	got, err := s.LoadArtifact(ctx)
	require.NoError(t, err)
	assert.Equal(t, last.ID, got.ID)
	assert.Equal(t, last.Blob, got.Blob)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM model_artifacts`).Scan(&count))
	assert.Equal(t, store.ArtifactRetention, count)
}
