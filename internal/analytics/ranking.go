package analytics

import (
	"sort"
	"time"

	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// DefaultTopRiskLimit is the number of entries the dashboard shows.
const DefaultTopRiskLimit = 5

// RiskScores maps a risk label to the score used for ranking assets.
var RiskScores = map[models.RiskLabel]int{
	models.RiskNormal: 30,
	models.RiskMedium: 65,
	models.RiskHigh:   85,
}

// RiskEntry is one asset in the top-risk ranking.
type RiskEntry struct {
	AssetID         int64            `json:"asset_id"`
	AssetName       string           `json:"asset_name"`
	RiskLabel       models.RiskLabel `json:"risk_label"`
	RiskScore       int              `json:"risk_score"`
	LastLabeledDate time.Time        `json:"last_labeled_date"`
}

// TopRisks ranks assets by the label of their most recent labeled inspection.
// Order is score descending, then date descending, then asset id ascending. A
// non-positive limit returns every ranked asset.
func TopRisks(ds Dataset, limit int) []RiskEntry {
	latest := map[int64]models.Inspection{}
	for _, insp := range ds.Inspections {
		if insp.RiskLabel == nil {
			continue
		}
		cur, ok := latest[insp.AssetID]
		if !ok || moreRecent(insp, cur) {
			latest[insp.AssetID] = insp
		}
	}

	assets := ds.assetIndex()
	out := make([]RiskEntry, 0, len(latest))
	for id, insp := range latest {
		out = append(out, RiskEntry{
			AssetID:         id,
			AssetName:       assets[id].Name,
			RiskLabel:       *insp.RiskLabel,
			RiskScore:       RiskScores[*insp.RiskLabel],
			LastLabeledDate: insp.Date,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		if !a.LastLabeledDate.Equal(b.LastLabeledDate) {
			return a.LastLabeledDate.After(b.LastLabeledDate)
		}
		return a.AssetID < b.AssetID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// moreRecent reports whether a supersedes b as an asset's latest labeled inspection.
// Same-day inspections resolve to the higher label, then the higher id.
func moreRecent(a, b models.Inspection) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	if *a.RiskLabel != *b.RiskLabel {
		return b.RiskLabel.Less(*a.RiskLabel)
	}
	return a.ID > b.ID
}
