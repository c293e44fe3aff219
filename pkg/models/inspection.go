package models

import (
	"fmt"
	"time"
)

// Method is the non-destructive testing technique used for an inspection.
type Method string

const (
	MethodVIK   Method = "VIK"
	MethodPVK   Method = "PVK"
	MethodMPK   Method = "MPK"
	MethodUZK   Method = "UZK"
	MethodRGK   Method = "RGK"
	MethodTVK   Method = "TVK"
	MethodVIBRO Method = "VIBRO"
	MethodMFL   Method = "MFL"
	MethodTFI   Method = "TFI"
	MethodGEO   Method = "GEO"
	MethodUTWM  Method = "UTWM"
)

var validMethods = map[Method]bool{
	MethodVIK: true, MethodPVK: true, MethodMPK: true, MethodUZK: true,
	MethodRGK: true, MethodTVK: true, MethodVIBRO: true, MethodMFL: true,
	MethodTFI: true, MethodGEO: true, MethodUTWM: true,
}

// ParseMethod validates the text form of an inspection method.
func ParseMethod(s string) (Method, error) {
	if m := Method(s); validMethods[m] {
		return m, nil
	}
	return "", fmt.Errorf("invalid inspection method %q", s)
}

// QualityGrade is the inspector's qualitative assessment of an asset's condition.
type QualityGrade string

const (
	QualitySatisfactory   QualityGrade = "satisfactory"
	QualityAcceptable     QualityGrade = "acceptable"
	QualityRequiresAction QualityGrade = "requires_action"
	QualityUnacceptable   QualityGrade = "unacceptable"
)

// ParseQualityGrade validates the text form of a quality grade.
func ParseQualityGrade(s string) (QualityGrade, error) {
	switch g := QualityGrade(s); g {
	case QualitySatisfactory, QualityAcceptable, QualityRequiresAction, QualityUnacceptable:
		return g, nil
	}
	return "", fmt.Errorf("invalid quality grade %q", s)
}

// Inspection is one historical measurement event tied to an asset.
// Records are immutable once stored.
type Inspection struct {
	ID                int64        `db:"id"                 json:"id"`
	AssetID           int64        `db:"asset_id"           json:"asset_id"`
	Method            Method       `db:"method"             json:"method"`
	Date              time.Time    `db:"date"               json:"date"`
	Temperature       *float64     `db:"temperature"        json:"temperature,omitempty"`
	Humidity          *float64     `db:"humidity"           json:"humidity,omitempty"`
	Illumination      *float64     `db:"illumination"       json:"illumination,omitempty"`
	DefectFound       bool         `db:"defect_found"       json:"defect_found"`
	DefectDescription *string      `db:"defect_description" json:"defect_description,omitempty"`
	QualityGrade      QualityGrade `db:"quality_grade"      json:"quality_grade"`
	Param1            *float64     `db:"param1"             json:"param1,omitempty"`
	Param2            *float64     `db:"param2"             json:"param2,omitempty"`
	Param3            *float64     `db:"param3"             json:"param3,omitempty"`
	RiskLabel         *RiskLabel   `db:"risk_label"         json:"risk_label,omitempty"`
}

// Features returns the inspection's measurements as a FeatureVector, applying defaults
// for missing values.
func (i Inspection) Features() FeatureVector {
	return FeatureInput{
		Param1:      i.Param1,
		Param2:      i.Param2,
		Param3:      i.Param3,
		Temperature: i.Temperature,
		Humidity:    i.Humidity,
	}.Vector()
}

// Validate checks the fields every stored inspection must carry.
func (i Inspection) Validate() error {
	if i.AssetID <= 0 {
		return fmt.Errorf("asset_id must be positive")
	}
	if _, err := ParseMethod(string(i.Method)); err != nil {
		return err
	}
	if i.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if _, err := ParseQualityGrade(string(i.QualityGrade)); err != nil {
		return err
	}
	if i.RiskLabel != nil && !i.RiskLabel.Valid() {
		return fmt.Errorf("invalid risk label %d", int(*i.RiskLabel))
	}
	return nil
}

// DateLayout is the wire format of inspection dates.
const DateLayout = "2006-01-02"

// InspectionInput is an inspection as submitted by API clients and event producers.
type InspectionInput struct {
	AssetID           int64    `json:"asset_id"`
	Method            string   `json:"method"`
	Date              string   `json:"date"`
	Temperature       *float64 `json:"temperature,omitempty"`
	Humidity          *float64 `json:"humidity,omitempty"`
	Illumination      *float64 `json:"illumination,omitempty"`
	DefectFound       bool     `json:"defect_found"`
	DefectDescription *string  `json:"defect_description,omitempty"`
	QualityGrade      string   `json:"quality_grade"`
	Param1            *float64 `json:"param1,omitempty"`
	Param2            *float64 `json:"param2,omitempty"`
	Param3            *float64 `json:"param3,omitempty"`
	RiskLabel         *string  `json:"risk_label,omitempty"`
}

// Inspection converts and validates the input.
func (in InspectionInput) Inspection() (Inspection, error) {
	date, err := time.Parse(DateLayout, in.Date)
	if err != nil {
		return Inspection{}, fmt.Errorf("date must use YYYY-MM-DD, got %q", in.Date)
	}
	insp := Inspection{
		AssetID:           in.AssetID,
		Method:            Method(in.Method),
		Date:              date,
		Temperature:       in.Temperature,
		Humidity:          in.Humidity,
		Illumination:      in.Illumination,
		DefectFound:       in.DefectFound,
		DefectDescription: in.DefectDescription,
		QualityGrade:      QualityGrade(in.QualityGrade),
		Param1:            in.Param1,
		Param2:            in.Param2,
		Param3:            in.Param3,
	}
	if in.RiskLabel != nil {
		label, err := ParseRiskLabel(*in.RiskLabel)
		if err != nil {
			return Inspection{}, err
		}
		insp.RiskLabel = &label
	}
	if err := insp.Validate(); err != nil {
		return Inspection{}, err
	}
	return insp, nil
}
