package handler

import (
	"errors"
	"net/http"

	"github.com/kiranshivaraju/integrityos/internal/api/response"
	"github.com/kiranshivaraju/integrityos/internal/classifier"
	"github.com/kiranshivaraju/integrityos/internal/store"
)

// writeError maps domain errors to the API error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errInvalidParam):
		response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Resource not found", nil)
	case errors.Is(err, store.ErrInvalidReference):
		response.Error(w, http.StatusUnprocessableEntity, response.CodeUnknownAsset,
			"The referenced asset does not exist", nil)
	case errors.Is(err, store.ErrAssetInUse):
		response.Error(w, http.StatusConflict, response.CodeAssetInUse,
			"The asset has recorded inspections and cannot be deleted", nil)
	case errors.Is(err, classifier.ErrInsufficientData):
		response.Error(w, http.StatusUnprocessableEntity, response.CodeInsufficientData, err.Error(), nil)
	case errors.Is(err, classifier.ErrInvalidSample):
		response.Error(w, http.StatusUnprocessableEntity, response.CodeValidation, err.Error(), nil)
	case errors.Is(err, classifier.ErrTrainingInProgress):
		response.Error(w, http.StatusConflict, response.CodeTrainingBusy,
			"Another training run is in progress", nil)
	default:
		response.Internal(w, r, err)
	}
}
