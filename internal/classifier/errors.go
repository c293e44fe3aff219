package classifier

import "errors"

// MinTrainingSamples is the smallest labeled set Train accepts.
const MinTrainingSamples = 10

var (
	// ErrInsufficientData is returned by Train when fewer than MinTrainingSamples samples
	// are supplied. Callers may retry with more data or call Bootstrap explicitly.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrInvalidSample is returned by Train for samples with non-finite features or an
	// unknown label.
	ErrInvalidSample = errors.New("invalid training sample")

	// ErrTrainingInProgress is returned when another instance holds the model writer lock.
	ErrTrainingInProgress = errors.New("model training already in progress")

	// ErrNoModel is returned by Save when no model is loaded.
	ErrNoModel = errors.New("no model loaded")

	// ErrInvalidArtifact is returned when an artifact blob cannot be decoded into a model.
	ErrInvalidArtifact = errors.New("invalid model artifact")
)
