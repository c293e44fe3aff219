package store

import (
	"context"
	"errors"
	"time"

	"github.com/kiranshivaraju/integrityos/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// ErrInvalidReference is returned when a record points at a row that does not exist,
// for example an inspection for an unknown asset.
var ErrInvalidReference = errors.New("referenced resource does not exist")

// ErrAssetInUse is returned when deleting an asset that still has inspections.
var ErrAssetInUse = errors.New("asset has inspections")

// ErrCorruptArtifact is returned when a stored model artifact cannot be read back.
var ErrCorruptArtifact = errors.New("model artifact is corrupt")

// ArtifactRetention is the number of model artifacts kept by PostgresStore.
const ArtifactRetention = 5

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAsset(ctx context.Context, id int64) (*models.Asset, error)
	ListAssets(ctx context.Context, filter AssetFilter) ([]models.Asset, error)
	UpdateAsset(ctx context.Context, asset *models.Asset) error
	DeleteAsset(ctx context.Context, id int64) error

	CreateInspection(ctx context.Context, insp *models.Inspection) error
	// RecordInspectionEvent stores insp at most once per event key. It reports false
	// without error when the key was already recorded.
	RecordInspectionEvent(ctx context.Context, key string, insp *models.Inspection) (bool, error)
	GetInspection(ctx context.Context, id int64) (*models.Inspection, error)
	ListInspections(ctx context.Context, filter InspectionFilter) ([]models.Inspection, error)
}

// AssetFilter narrows ListAssets. Zero values mean "any"; a non-positive Limit returns
// every matching row.
type AssetFilter struct {
	PipelineID string
	Type       models.AssetType
	Limit      int
	Offset     int
}

// InspectionFilter narrows ListInspections. Zero values mean "any"; a non-positive Limit
// returns every matching row.
type InspectionFilter struct {
	AssetID     int64
	Method      models.Method
	From        time.Time
	To          time.Time
	DefectFound *bool
	// Labeled restricts the result to inspections carrying a risk label.
	Labeled bool
	Limit   int
	Offset  int
}
