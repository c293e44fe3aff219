// Package analytics reduces inspection history to fleet-wide risk views.
//
// Every function is pure: it reads the Dataset it is given and returns freshly built
// values. Empty input produces zero counts and empty (non-nil) slices.
package analytics

import (
	"math"

	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// Dataset is a read-only snapshot of assets and their inspections, ordered by id.
type Dataset struct {
	Assets      []models.Asset
	Inspections []models.Inspection
}

// assetIndex maps asset ids to assets.
func (ds Dataset) assetIndex() map[int64]models.Asset {
	idx := make(map[int64]models.Asset, len(ds.Assets))
	for _, a := range ds.Assets {
		idx[a.ID] = a
	}
	return idx
}

// percent returns 100·part/total rounded to one decimal place, or 0 when total is 0.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(100 * float64(part) / float64(total))
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
