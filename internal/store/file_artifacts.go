package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kiranshivaraju/integrityos/pkg/models"
)

const artifactFileName = "risk_model.json"

// FileArtifactStore keeps the latest model artifact as a single JSON file in a directory.
// Saves replace the file atomically, so readers see either the old or the new artifact.
type FileArtifactStore struct {
	dir string
}

// NewFileArtifactStore creates a FileArtifactStore rooted at dir. The directory is created
// on first save.
func NewFileArtifactStore(dir string) *FileArtifactStore {
	return &FileArtifactStore{dir: dir}
}

// Path returns the location of the artifact file.
func (s *FileArtifactStore) Path() string {
	return filepath.Join(s.dir, artifactFileName)
}

func (s *FileArtifactStore) LoadArtifact(_ context.Context) (*models.ModelArtifact, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var a models.ModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	return &a, nil
}

func (s *FileArtifactStore) SaveArtifact(ctx context.Context, a *models.ModelArtifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode model artifact: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, artifactFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("replace model artifact: %w", err)
	}
	return nil
}
