package analytics

// Summary holds fleet-wide totals.
type Summary struct {
	TotalAssets      int     `json:"total_assets"`
	TotalInspections int     `json:"total_inspections"`
	TotalDefects     int     `json:"total_defects"`
	DefectRate       float64 `json:"defect_rate_pct"`
}

// Summarize counts assets, inspections and defects. An asset counts once whether it
// appears in the asset list, in inspections, or both.
func Summarize(ds Dataset) Summary {
	assets := make(map[int64]struct{}, len(ds.Assets))
	for _, a := range ds.Assets {
		assets[a.ID] = struct{}{}
	}

	var defects int
	for _, insp := range ds.Inspections {
		assets[insp.AssetID] = struct{}{}
		if insp.DefectFound {
			defects++
		}
	}

	return Summary{
		TotalAssets:      len(assets),
		TotalInspections: len(ds.Inspections),
		TotalDefects:     defects,
		DefectRate:       percent(defects, len(ds.Inspections)),
	}
}
