package analytics

import "github.com/kiranshivaraju/integrityos/pkg/models"

// Count is one group of a distribution.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Share is a distribution group with its percentage of the total.
type Share struct {
	Key        string  `json:"key"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// QualityStats is the distribution of quality grades.
type QualityStats struct {
	Distribution []Share `json:"distribution"`
	Total        int     `json:"total"`
}

// MethodStats is the defect rate of one inspection method.
type MethodStats struct {
	Method     models.Method `json:"method"`
	Total      int           `json:"total_inspections"`
	Defects    int           `json:"defects_count"`
	DefectRate float64       `json:"defect_rate_pct"`
}

// DistributionBy groups items by key and counts them. Groups appear in order of the
// first item carrying their key. Items for which key reports false are skipped.
func DistributionBy[T any](items []T, key func(T) (string, bool)) []Count {
	out := []Count{}
	pos := map[string]int{}
	for _, item := range items {
		k, ok := key(item)
		if !ok {
			continue
		}
		i, seen := pos[k]
		if !seen {
			i = len(out)
			pos[k] = i
			out = append(out, Count{Key: k})
		}
		out[i].Count++
	}
	return out
}

// MethodDistribution counts inspections per method.
func MethodDistribution(inspections []models.Inspection) []Count {
	return DistributionBy(inspections, func(i models.Inspection) (string, bool) {
		return string(i.Method), true
	})
}

// RiskDistribution counts labeled inspections per risk label. Unlabeled inspections are
// excluded.
func RiskDistribution(inspections []models.Inspection) []Count {
	return DistributionBy(inspections, func(i models.Inspection) (string, bool) {
		if i.RiskLabel == nil {
			return "", false
		}
		return i.RiskLabel.String(), true
	})
}

// AssetTypeDistribution counts assets per type.
func AssetTypeDistribution(assets []models.Asset) []Count {
	return DistributionBy(assets, func(a models.Asset) (string, bool) {
		return string(a.Type), true
	})
}

// QualityDistribution counts inspections per quality grade with their share of all
// inspections.
func QualityDistribution(inspections []models.Inspection) QualityStats {
	counts := DistributionBy(inspections, func(i models.Inspection) (string, bool) {
		return string(i.QualityGrade), true
	})
	stats := QualityStats{Distribution: make([]Share, 0, len(counts)), Total: len(inspections)}
	for _, c := range counts {
		stats.Distribution = append(stats.Distribution, Share{
			Key:        c.Key,
			Count:      c.Count,
			Percentage: percent(c.Count, len(inspections)),
		})
	}
	return stats
}

// MethodDefectRates reports inspections, defects and defect rate per method, in order of
// first occurrence.
func MethodDefectRates(inspections []models.Inspection) []MethodStats {
	out := []MethodStats{}
	pos := map[models.Method]int{}
	for _, insp := range inspections {
		i, seen := pos[insp.Method]
		if !seen {
			i = len(out)
			pos[insp.Method] = i
			out = append(out, MethodStats{Method: insp.Method})
		}
		out[i].Total++
		if insp.DefectFound {
			out[i].Defects++
		}
	}
	for i := range out {
		out[i].DefectRate = percent(out[i].Defects, out[i].Total)
	}
	return out
}
