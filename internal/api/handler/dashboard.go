package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/integrityos/internal/analytics"
	"github.com/kiranshivaraju/integrityos/internal/api/response"
	"github.com/kiranshivaraju/integrityos/internal/dashboard"
)

// Dashboard defines the analytics views the handlers depend on.
type Dashboard interface {
	Overview(ctx context.Context) (*dashboard.Overview, error)
	DefectsByMethod(ctx context.Context) ([]analytics.MethodStats, error)
	DefectsByYear(ctx context.Context, from, to int) ([]analytics.YearStats, error)
	QualityStats(ctx context.Context) (analytics.QualityStats, error)
	DefaultYears() (int, int)
}

// NewOverviewHandler returns an http.HandlerFunc for GET /api/v1/dashboard.
func NewOverviewHandler(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov, err := d.Overview(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, ov)
	}
}

// NewDefectsByMethodHandler returns an http.HandlerFunc for
// GET /api/v1/dashboard/defects-by-method.
func NewDefectsByMethodHandler(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := d.DefectsByMethod(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, stats)
	}
}

// NewDefectsByYearHandler returns an http.HandlerFunc for
// GET /api/v1/dashboard/defects-by-year. The range defaults to the configured years.
func NewDefectsByYearHandler(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defFrom, defTo := d.DefaultYears()
		from, err := queryInt(r, "year_from", defFrom)
		if err != nil {
			writeError(w, r, err)
			return
		}
		to, err := queryInt(r, "year_to", defTo)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if from > to {
			writeError(w, r, fmt.Errorf("%w: year_from must not be after year_to", errInvalidParam))
			return
		}

		stats, err := d.DefectsByYear(r.Context(), from, to)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, map[string]any{
			"year_from": from,
			"year_to":   to,
			"years":     stats,
		})
	}
}

// NewQualityStatsHandler returns an http.HandlerFunc for
// GET /api/v1/dashboard/quality-stats.
func NewQualityStatsHandler(d Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := d.QualityStats(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, stats)
	}
}
