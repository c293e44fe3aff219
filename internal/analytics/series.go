package analytics

import (
	"sort"
	"time"

	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// DefaultWindowDays is the trailing window of MonthlySeries.
const DefaultWindowDays = 180

const periodLayout = "2006-01"

// PeriodStats holds inspection and defect counts for one calendar month.
type PeriodStats struct {
	Period  string `json:"period"`
	Total   int    `json:"total_inspections"`
	Defects int    `json:"defects_found"`
}

// YearStats holds inspection counts for assets commissioned in one year.
type YearStats struct {
	Year       int     `json:"year"`
	Total      int     `json:"total_inspections"`
	Defects    int     `json:"defects_count"`
	DefectRate float64 `json:"defect_rate_pct"`
}

// MonthlySeries buckets inspections dated on or after now minus windowDays days by
// calendar month (YYYY-MM), ascending. A non-positive windowDays uses DefaultWindowDays.
func MonthlySeries(inspections []models.Inspection, now time.Time, windowDays int) []PeriodStats {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	buckets := map[string]*PeriodStats{}
	for _, insp := range inspections {
		if insp.Date.Before(since) {
			continue
		}
		period := insp.Date.Format(periodLayout)
		b, ok := buckets[period]
		if !ok {
			b = &PeriodStats{Period: period}
			buckets[period] = b
		}
		b.Total++
		if insp.DefectFound {
			b.Defects++
		}
	}

	out := make([]PeriodStats, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// YearlyDefectRate joins inspections to their asset's commissioning year and reports
// totals per year within [from, to], ascending. Inspections of unknown assets are
// skipped.
func YearlyDefectRate(ds Dataset, from, to int) []YearStats {
	assets := ds.assetIndex()
	buckets := map[int]*YearStats{}
	for _, insp := range ds.Inspections {
		a, ok := assets[insp.AssetID]
		if !ok || a.Year < from || a.Year > to {
			continue
		}
		b, ok := buckets[a.Year]
		if !ok {
			b = &YearStats{Year: a.Year}
			buckets[a.Year] = b
		}
		b.Total++
		if insp.DefectFound {
			b.Defects++
		}
	}

	out := make([]YearStats, 0, len(buckets))
	for _, b := range buckets {
		b.DefectRate = percent(b.Defects, b.Total)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
