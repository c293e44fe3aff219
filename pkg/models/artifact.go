package models

import (
	"time"

	"github.com/google/uuid"
)

// Artifact sources.
const (
	ArtifactSourceSynthetic = "synthetic"
	ArtifactSourceLabeled   = "labeled"
)

// ModelArtifact is a persisted classifier. Blob is opaque to storage; only the classifier
// decodes it. Artifacts are immutable: retraining produces a new one.
type ModelArtifact struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Source    string    `db:"source"     json:"source"`
	Samples   int       `db:"samples"    json:"samples"`
	Accuracy  float64   `db:"accuracy"   json:"accuracy"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Blob      []byte    `db:"blob"       json:"blob"`
}
