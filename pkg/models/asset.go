package models

import "fmt"

// AssetType classifies a monitored physical asset.
type AssetType string

const (
	AssetPipelineSection AssetType = "pipeline_section"
	AssetValve           AssetType = "valve"
	AssetCompressor      AssetType = "compressor"
)

// ParseAssetType validates the text form of an asset type.
func ParseAssetType(s string) (AssetType, error) {
	switch t := AssetType(s); t {
	case AssetPipelineSection, AssetValve, AssetCompressor:
		return t, nil
	}
	return "", fmt.Errorf("invalid asset type %q: must be one of pipeline_section, valve, compressor", s)
}

// Asset is a physical object on a pipeline that receives periodic inspections.
type Asset struct {
	ID         int64     `db:"id"          json:"id"`
	Name       string    `db:"name"        json:"name"`
	Type       AssetType `db:"type"        json:"type"`
	PipelineID string    `db:"pipeline_id" json:"pipeline_id"`
	Lat        float64   `db:"lat"         json:"lat"`
	Lon        float64   `db:"lon"         json:"lon"`
	Year       int       `db:"year"        json:"year"`
	Material   string    `db:"material"    json:"material"`
}

// Validate checks the fields every stored asset must carry.
func (a Asset) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := ParseAssetType(string(a.Type)); err != nil {
		return err
	}
	if a.PipelineID == "" {
		return fmt.Errorf("pipeline_id is required")
	}
	if a.Lat < -90 || a.Lat > 90 || a.Lon < -180 || a.Lon > 180 {
		return fmt.Errorf("coordinates out of range: lat %v, lon %v", a.Lat, a.Lon)
	}
	if a.Year < 0 {
		return fmt.Errorf("year must not be negative")
	}
	return nil
}
