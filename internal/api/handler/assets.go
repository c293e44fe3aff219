package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/integrityos/internal/api/response"
	"github.com/kiranshivaraju/integrityos/internal/store"
	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// AssetStore defines the asset operations the handlers depend on.
type AssetStore interface {
	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAsset(ctx context.Context, id int64) (*models.Asset, error)
	ListAssets(ctx context.Context, filter store.AssetFilter) ([]models.Asset, error)
	UpdateAsset(ctx context.Context, asset *models.Asset) error
	DeleteAsset(ctx context.Context, id int64) error
}

// NewListAssetsHandler returns an http.HandlerFunc for GET /api/v1/assets.
// Supported query parameters: pipeline_id, type, limit, offset.
func NewListAssetsHandler(s AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := page(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		filter := store.AssetFilter{
			PipelineID: r.URL.Query().Get("pipeline_id"),
			Limit:      limit,
			Offset:     offset,
		}
		if t := r.URL.Query().Get("type"); t != "" {
			at, err := models.ParseAssetType(t)
			if err != nil {
				response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, err.Error(), nil)
				return
			}
			filter.Type = at
		}

		assets, err := s.ListAssets(r.Context(), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Collection(w, assets, response.ListMeta{Limit: limit, Offset: offset, Count: len(assets)})
	}
}

// NewCreateAssetHandler returns an http.HandlerFunc for POST /api/v1/assets.
func NewCreateAssetHandler(s AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var asset models.Asset
		if err := decodeBody(w, r, &asset); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid JSON body", nil)
			return
		}
		asset.ID = 0
		if err := asset.Validate(); err != nil {
			response.Validation(w, err.Error(), nil)
			return
		}

		if err := s.CreateAsset(r.Context(), &asset); err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, asset)
	}
}

// NewUpdateAssetHandler returns an http.HandlerFunc for PUT /api/v1/assets/{assetID}.
// The body replaces every field of the asset.
func NewUpdateAssetHandler(s AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "assetID")
		if err != nil {
			writeError(w, r, err)
			return
		}

		var asset models.Asset
		if err := decodeBody(w, r, &asset); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid JSON body", nil)
			return
		}
		asset.ID = id
		if err := asset.Validate(); err != nil {
			response.Validation(w, err.Error(), nil)
			return
		}

		if err := s.UpdateAsset(r.Context(), &asset); err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, asset)
	}
}

// NewDeleteAssetHandler returns an http.HandlerFunc for DELETE /api/v1/assets/{assetID}.
// Assets with recorded inspections are refused with 409.
func NewDeleteAssetHandler(s AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "assetID")
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := s.DeleteAsset(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// NewGetAssetHandler returns an http.HandlerFunc for GET /api/v1/assets/{assetID}.
func NewGetAssetHandler(s AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "assetID")
		if err != nil {
			writeError(w, r, err)
			return
		}

		asset, err := s.GetAsset(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, asset)
	}
}
