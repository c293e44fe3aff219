// Package dashboard loads inspection history from storage and composes the analytics
// views shown on the risk dashboard.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/kiranshivaraju/integrityos/internal/analytics"
	"github.com/kiranshivaraju/integrityos/internal/config"
	"github.com/kiranshivaraju/integrityos/internal/store"
	"github.com/kiranshivaraju/integrityos/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Source is the read side of the store the dashboard needs.
type Source interface {
	ListAssets(ctx context.Context, filter store.AssetFilter) ([]models.Asset, error)
	ListInspections(ctx context.Context, filter store.InspectionFilter) ([]models.Inspection, error)
}

// Overview is the main dashboard payload.
type Overview struct {
	Summary       analytics.Summary         `json:"summary"`
	Distributions Distributions             `json:"distributions"`
	TimeSeries    TimeSeries                `json:"time_series"`
	PipelineStats []analytics.PipelineStats `json:"pipeline_stats"`
	TopRisks      []analytics.RiskEntry     `json:"top_risks"`
}

type Distributions struct {
	Methods     []analytics.Count `json:"methods"`
	Criticality []analytics.Count `json:"criticality"`
	AssetTypes  []analytics.Count `json:"asset_types"`
}

type TimeSeries struct {
	Monthly    []analytics.PeriodStats `json:"monthly_inspections"`
	WindowDays int                     `json:"window_days"`
}

// Service builds dashboard views from a fresh snapshot on every call.
type Service struct {
	src Source
	cfg config.AnalyticsConfig
	now func() time.Time
}

// NewService creates a new Service.
func NewService(src Source, cfg config.AnalyticsConfig) *Service {
	return &Service{src: src, cfg: cfg, now: time.Now}
}

// Snapshot reads all assets and inspections concurrently.
func (s *Service) Snapshot(ctx context.Context) (analytics.Dataset, error) {
	var ds analytics.Dataset
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		assets, err := s.src.ListAssets(ctx, store.AssetFilter{})
		if err != nil {
			return fmt.Errorf("list assets: %w", err)
		}
		ds.Assets = assets
		return nil
	})
	g.Go(func() error {
		inspections, err := s.src.ListInspections(ctx, store.InspectionFilter{})
		if err != nil {
			return fmt.Errorf("list inspections: %w", err)
		}
		ds.Inspections = inspections
		return nil
	})
	if err := g.Wait(); err != nil {
		return analytics.Dataset{}, err
	}
	return ds, nil
}

// Overview computes the main dashboard.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	ds, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return &Overview{
		Summary: analytics.Summarize(ds),
		Distributions: Distributions{
			Methods:     analytics.MethodDistribution(ds.Inspections),
			Criticality: analytics.RiskDistribution(ds.Inspections),
			AssetTypes:  analytics.AssetTypeDistribution(ds.Assets),
		},
		TimeSeries: TimeSeries{
			Monthly:    analytics.MonthlySeries(ds.Inspections, s.now(), s.cfg.WindowDays),
			WindowDays: s.cfg.WindowDays,
		},
		PipelineStats: analytics.PipelineRollup(ds),
		TopRisks:      analytics.TopRisks(ds, s.cfg.TopRiskLimit),
	}, nil
}

// DefectsByMethod reports defect rates per inspection method.
func (s *Service) DefectsByMethod(ctx context.Context) ([]analytics.MethodStats, error) {
	inspections, err := s.src.ListInspections(ctx, store.InspectionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list inspections: %w", err)
	}
	return analytics.MethodDefectRates(inspections), nil
}

// DefectsByYear reports defect rates by asset commissioning year within [from, to].
func (s *Service) DefectsByYear(ctx context.Context, from, to int) ([]analytics.YearStats, error) {
	ds, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.YearlyDefectRate(ds, from, to), nil
}

// QualityStats reports the distribution of quality grades.
func (s *Service) QualityStats(ctx context.Context) (analytics.QualityStats, error) {
	inspections, err := s.src.ListInspections(ctx, store.InspectionFilter{})
	if err != nil {
		return analytics.QualityStats{}, fmt.Errorf("list inspections: %w", err)
	}
	return analytics.QualityDistribution(inspections), nil
}

// DefaultYears returns the configured year range for DefectsByYear.
func (s *Service) DefaultYears() (int, int) {
	return s.cfg.YearFrom, s.cfg.YearTo
}
