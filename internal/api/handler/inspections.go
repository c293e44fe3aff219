package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/integrityos/internal/api/response"
	"github.com/kiranshivaraju/integrityos/internal/store"
	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// InspectionStore defines the inspection operations the handlers depend on.
type InspectionStore interface {
	GetAsset(ctx context.Context, id int64) (*models.Asset, error)
	CreateInspection(ctx context.Context, insp *models.Inspection) error
	GetInspection(ctx context.Context, id int64) (*models.Inspection, error)
	ListInspections(ctx context.Context, filter store.InspectionFilter) ([]models.Inspection, error)
}

// NewListInspectionsHandler returns an http.HandlerFunc for GET /api/v1/inspections.
// Supported query parameters: asset_id, method, from, to, defect_found, labeled, limit,
// offset.
func NewListInspectionsHandler(s InspectionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := inspectionFilter(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if filter.AssetID, err = queryID(r, "asset_id"); err != nil {
			writeError(w, r, err)
			return
		}
		listInspections(w, r, s, filter)
	}
}

// NewListAssetInspectionsHandler returns an http.HandlerFunc for
// GET /api/v1/assets/{assetID}/inspections. Unknown assets yield 404.
func NewListAssetInspectionsHandler(s InspectionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "assetID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if _, err := s.GetAsset(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}

		filter, err := inspectionFilter(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		filter.AssetID = id
		listInspections(w, r, s, filter)
	}
}

// NewCreateInspectionHandler returns an http.HandlerFunc for POST /api/v1/inspections.
func NewCreateInspectionHandler(s InspectionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.InspectionInput
		if err := decodeBody(w, r, &in); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeInvalidRequest, "Invalid JSON body", nil)
			return
		}

		insp, err := in.Inspection()
		if err != nil {
			response.Validation(w, err.Error(), nil)
			return
		}

		if err := s.CreateInspection(r.Context(), &insp); err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, insp)
	}
}

// NewGetInspectionHandler returns an http.HandlerFunc for
// GET /api/v1/inspections/{inspectionID}.
func NewGetInspectionHandler(s InspectionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "inspectionID")
		if err != nil {
			writeError(w, r, err)
			return
		}

		insp, err := s.GetInspection(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, insp)
	}
}

func listInspections(w http.ResponseWriter, r *http.Request, s InspectionStore, filter store.InspectionFilter) {
	inspections, err := s.ListInspections(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Collection(w, inspections, response.ListMeta{
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Count:  len(inspections),
	})
}

// inspectionFilter reads every inspection filter except the asset id.
func inspectionFilter(r *http.Request) (store.InspectionFilter, error) {
	var (
		f   store.InspectionFilter
		err error
	)
	if f.Limit, f.Offset, err = page(r); err != nil {
		return f, err
	}
	if m := r.URL.Query().Get("method"); m != "" {
		if f.Method, err = models.ParseMethod(m); err != nil {
			return f, errInvalidParamf(err)
		}
	}
	if f.From, err = queryDate(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, err
	}
	if f.DefectFound, err = queryBool(r, "defect_found"); err != nil {
		return f, err
	}
	labeled, err := queryBool(r, "labeled")
	if err != nil {
		return f, err
	}
	f.Labeled = labeled != nil && *labeled
	return f, nil
}
