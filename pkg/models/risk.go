// Package models contains shared data models used across the IntegrityOS codebase.
package models

import (
	"fmt"
	"strings"
)

// RiskLabel is the ordered risk class assigned to an inspection.
// The zero value is RiskNormal. Ordering is meaningful: RiskNormal < RiskMedium < RiskHigh.
type RiskLabel int

const (
	RiskNormal RiskLabel = iota
	RiskMedium
	RiskHigh
)

// NumRiskLabels is the number of risk classes a classifier distinguishes.
const NumRiskLabels = 3

// RiskLabels lists every label in ascending order.
var RiskLabels = [NumRiskLabels]RiskLabel{RiskNormal, RiskMedium, RiskHigh}

var riskLabelNames = [NumRiskLabels]string{"normal", "medium", "high"}

// String returns the lowercase label name.
func (l RiskLabel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("RiskLabel(%d)", int(l))
	}
	return riskLabelNames[l]
}

// Valid reports whether l is one of the three defined labels.
func (l RiskLabel) Valid() bool {
	return l >= RiskNormal && l <= RiskHigh
}

// Less reports whether l ranks strictly below other.
func (l RiskLabel) Less(other RiskLabel) bool {
	return l < other
}

// ParseRiskLabel parses the text form of a label. Matching is case-insensitive.
func ParseRiskLabel(s string) (RiskLabel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range riskLabelNames {
		if n == name {
			return RiskLabel(i), nil
		}
	}
	return RiskNormal, fmt.Errorf("invalid risk label %q: must be one of normal, medium, high", s)
}

// MarshalText implements encoding.TextMarshaler, so labels appear as names in JSON
// values and map keys.
func (l RiskLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid risk label %d", int(l))
	}
	return []byte(riskLabelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *RiskLabel) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
