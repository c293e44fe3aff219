package analytics

import "sort"

// PipelineStats summarizes the assets of one pipeline.
type PipelineStats struct {
	PipelineID   string `json:"pipeline_id"`
	ObjectsCount int    `json:"objects_count"`
	DefectsCount int    `json:"defects_count"`
}

// PipelineRollup reports, per pipeline, the number of distinct assets and the number of
// defect-flagged inspections of those assets, ascending by pipeline id.
func PipelineRollup(ds Dataset) []PipelineStats {
	rows := map[string]*PipelineStats{}
	pipelineOf := make(map[int64]string, len(ds.Assets))
	for _, a := range ds.Assets {
		if _, dup := pipelineOf[a.ID]; dup {
			continue
		}
		pipelineOf[a.ID] = a.PipelineID
		r, ok := rows[a.PipelineID]
		if !ok {
			r = &PipelineStats{PipelineID: a.PipelineID}
			rows[a.PipelineID] = r
		}
		r.ObjectsCount++
	}

	for _, insp := range ds.Inspections {
		if !insp.DefectFound {
			continue
		}
		if p, ok := pipelineOf[insp.AssetID]; ok {
			rows[p].DefectsCount++
		}
	}

	out := make([]PipelineStats, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PipelineID < out[j].PipelineID })
	return out
}
