package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/integrityos/pkg/models"
	"github.com/kiranshivaraju/integrityos/pkg/sqlfilter"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Assets ---

const assetColumns = `id, name, type, pipeline_id, lat, lon, year, material`

func (s *PostgresStore) CreateAsset(ctx context.Context, asset *models.Asset) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO assets (name, type, pipeline_id, lat, lon, year, material)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		asset.Name, string(asset.Type), asset.PipelineID, asset.Lat, asset.Lon, asset.Year, asset.Material,
	).Scan(&asset.ID)
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, id int64) (*models.Asset, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, filter AssetFilter) ([]models.Asset, error) {
	var b sqlfilter.Builder
	if filter.PipelineID != "" {
		b.Eq("pipeline_id", filter.PipelineID)
	}
	if filter.Type != "" {
		b.Eq("type", string(filter.Type))
	}
	where, _ := b.Where()
	query := fmt.Sprintf(`SELECT %s FROM assets %s ORDER BY id %s`,
		assetColumns, where, b.Page(filter.Limit, filter.Offset))

	rows, err := s.pool.Query(ctx, query, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []models.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// UpdateAsset replaces every field of the asset with asset.ID.
func (s *PostgresStore) UpdateAsset(ctx context.Context, asset *models.Asset) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets
		 SET name = $2, type = $3, pipeline_id = $4, lat = $5, lon = $6, year = $7, material = $8
		 WHERE id = $1`,
		asset.ID, asset.Name, string(asset.Type), asset.PipelineID, asset.Lat, asset.Lon, asset.Year, asset.Material,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAsset removes an asset. Assets with recorded inspections are kept and
// ErrAssetInUse is returned.
func (s *PostgresStore) DeleteAsset(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyError(err) {
			return ErrAssetInUse
		}
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAsset(row pgx.Row) (models.Asset, error) {
	var a models.Asset
	var typ string
	err := row.Scan(&a.ID, &a.Name, &typ, &a.PipelineID, &a.Lat, &a.Lon, &a.Year, &a.Material)
	a.Type = models.AssetType(typ)
	return a, err
}

// --- Inspections ---

const inspectionColumns = `id, asset_id, method, date, temperature, humidity, illumination,
	defect_found, defect_description, quality_grade, param1, param2, param3, risk_label`

// queryRower is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) CreateInspection(ctx context.Context, insp *models.Inspection) error {
	return insertInspection(ctx, s.pool, insp)
}

// RecordInspectionEvent inserts the event key and the inspection in one transaction.
func (s *PostgresStore) RecordInspectionEvent(ctx context.Context, key string, insp *models.Inspection) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin record event: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ingested_events WHERE event_key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check event key: %w", err)
	}
	if exists {
		return false, nil
	}

	if err := insertInspection(ctx, tx, insp); err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO ingested_events (event_key, inspection_id) VALUES ($1, $2)
		 ON CONFLICT (event_key) DO NOTHING`,
		key, insp.ID,
	)
	if err != nil {
		return false, fmt.Errorf("record event key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// A concurrent delivery won the race; drop our copy.
		insp.ID = 0
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit record event: %w", err)
	}
	return true, nil
}

func insertInspection(ctx context.Context, q queryRower, insp *models.Inspection) error {
	var label *string
	if insp.RiskLabel != nil {
		l := insp.RiskLabel.String()
		label = &l
	}
	err := q.QueryRow(ctx,
		`INSERT INTO inspections (asset_id, method, date, temperature, humidity, illumination,
		   defect_found, defect_description, quality_grade, param1, param2, param3, risk_label)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		insp.AssetID, string(insp.Method), insp.Date, insp.Temperature, insp.Humidity, insp.Illumination,
		insp.DefectFound, insp.DefectDescription, string(insp.QualityGrade),
		insp.Param1, insp.Param2, insp.Param3, label,
	).Scan(&insp.ID)
	if err != nil {
		if isForeignKeyError(err) {
			return ErrInvalidReference
		}
		return fmt.Errorf("create inspection: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInspection(ctx context.Context, id int64) (*models.Inspection, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1`, id)
	insp, err := scanInspection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get inspection: %w", err)
	}
	return &insp, nil
}

func (s *PostgresStore) ListInspections(ctx context.Context, filter InspectionFilter) ([]models.Inspection, error) {
	var b sqlfilter.Builder
	if filter.AssetID > 0 {
		b.Eq("asset_id", filter.AssetID)
	}
	if filter.Method != "" {
		b.Eq("method", string(filter.Method))
	}
	if !filter.From.IsZero() {
		b.Gte("date", filter.From)
	}
	if !filter.To.IsZero() {
		b.Lte("date", filter.To)
	}
	if filter.DefectFound != nil {
		b.Eq("defect_found", *filter.DefectFound)
	}
	if filter.Labeled {
		b.NotNull("risk_label")
	}
	where, _ := b.Where()
	query := fmt.Sprintf(`SELECT %s FROM inspections %s ORDER BY id %s`,
		inspectionColumns, where, b.Page(filter.Limit, filter.Offset))

	rows, err := s.pool.Query(ctx, query, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list inspections: %w", err)
	}
	defer rows.Close()

	inspections := []models.Inspection{}
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inspection: %w", err)
		}
		inspections = append(inspections, insp)
	}
	return inspections, rows.Err()
}

func scanInspection(row pgx.Row) (models.Inspection, error) {
	var (
		i       models.Inspection
		method  string
		quality string
		label   *string
	)
	if err := row.Scan(&i.ID, &i.AssetID, &method, &i.Date, &i.Temperature, &i.Humidity, &i.Illumination,
		&i.DefectFound, &i.DefectDescription, &quality, &i.Param1, &i.Param2, &i.Param3, &label); err != nil {
		return models.Inspection{}, err
	}
	i.Method = models.Method(method)
	i.QualityGrade = models.QualityGrade(quality)
	if label != nil {
		l, err := models.ParseRiskLabel(*label)
		if err != nil {
			return models.Inspection{}, fmt.Errorf("inspection %d: %w", i.ID, err)
		}
		i.RiskLabel = &l
	}
	return i, nil
}

// --- Model artifacts ---

// LoadArtifact returns the most recently saved model artifact.
func (s *PostgresStore) LoadArtifact(ctx context.Context) (*models.ModelArtifact, error) {
	var a models.ModelArtifact
	err := s.pool.QueryRow(ctx,
		`SELECT id, source, samples, accuracy, created_at, blob
		 FROM model_artifacts ORDER BY created_at DESC, seq DESC LIMIT 1`,
	).Scan(&a.ID, &a.Source, &a.Samples, &a.Accuracy, &a.CreatedAt, &a.Blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load model artifact: %w", err)
	}
	return &a, nil
}

// SaveArtifact inserts the artifact and prunes older ones beyond ArtifactRetention in the
// same transaction.
func (s *PostgresStore) SaveArtifact(ctx context.Context, a *models.ModelArtifact) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save artifact: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO model_artifacts (id, source, samples, accuracy, created_at, blob)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Source, a.Samples, a.Accuracy, a.CreatedAt, a.Blob)
	if err != nil {
		return fmt.Errorf("insert model artifact: %w", err)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM model_artifacts WHERE id NOT IN (
		   SELECT id FROM model_artifacts ORDER BY created_at DESC, seq DESC LIMIT $1
		 )`, ArtifactRetention)
	if err != nil {
		return fmt.Errorf("prune model artifacts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save artifact: %w", err)
	}
	return nil
}

// isForeignKeyError checks if a pgx error is a foreign key constraint violation.
func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}
