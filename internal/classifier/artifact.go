package classifier

import (
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/integrityos/pkg/models"
)

const artifactVersion = 1

// artifactPayload is the blob stored inside models.ModelArtifact.
type artifactPayload struct {
	Version  int      `json:"version"`
	Features []string `json:"features"`
	Scaler   Scaler   `json:"scaler"`
	Forest   *forest  `json:"forest"`
}

// Artifact encodes the model for an ArtifactStore.
func (m *Model) Artifact() (*models.ModelArtifact, error) {
	blob, err := json.Marshal(artifactPayload{
		Version:  artifactVersion,
		Features: models.FeatureNames[:],
		Scaler:   m.scaler,
		Forest:   m.forest,
	})
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return &models.ModelArtifact{
		ID:        m.ID,
		Source:    m.Source,
		Samples:   m.Samples,
		Accuracy:  m.Accuracy,
		CreatedAt: m.CreatedAt,
		Blob:      blob,
	}, nil
}

// ModelFromArtifact decodes and validates a stored artifact.
func ModelFromArtifact(a *models.ModelArtifact) (*Model, error) {
	var p artifactPayload
	if err := json.Unmarshal(a.Blob, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if p.Version != artifactVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidArtifact, p.Version)
	}
	if len(p.Features) != models.NumFeatures {
		return nil, fmt.Errorf("%w: expected %d features, got %d", ErrInvalidArtifact, models.NumFeatures, len(p.Features))
	}
	for i, name := range p.Features {
		if name != models.FeatureNames[i] {
			return nil, fmt.Errorf("%w: feature %d is %q, expected %q", ErrInvalidArtifact, i, name, models.FeatureNames[i])
		}
	}
	if !p.Scaler.valid() {
		return nil, fmt.Errorf("%w: bad scaling parameters", ErrInvalidArtifact)
	}
	if p.Forest == nil || !p.Forest.valid() {
		return nil, fmt.Errorf("%w: malformed forest", ErrInvalidArtifact)
	}

	return &Model{
		ID:        a.ID,
		Source:    a.Source,
		Samples:   a.Samples,
		Accuracy:  a.Accuracy,
		CreatedAt: a.CreatedAt,
		scaler:    p.Scaler,
		forest:    p.Forest,
	}, nil
}
