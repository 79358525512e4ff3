// Package clamser turns normalized CLAMS/Oxymax record series into
// per-cage summary tables, hourly pivots and group-level statistics.
package clamser

import (
	"fmt"
	"strings"
)

// Parameter identifies one channel type of the instrument's closed vocabulary.
type Parameter string

const (
	VO2  Parameter = "VO2"
	VCO2 Parameter = "VCO2"
	RER  Parameter = "RER"
	HEAT Parameter = "HEAT"
	XTOT Parameter = "XTOT"
	XAMB Parameter = "XAMB"
	FEED Parameter = "FEED"
)

// Class groups parameters that share an aggregation shape.
type Class int

const (
	Metabolic Class = iota
	Activity
	Feed
)

var parameterUnits = map[Parameter]string{
	VO2:  "ml/kg/hr",
	VCO2: "ml/kg/hr",
	RER:  "ratio",
	HEAT: "kcal/hr",
	XTOT: "counts",
	XAMB: "counts",
	FEED: "g",
}

// Parameters returns the closed vocabulary in display order.
func Parameters() []Parameter {
	return []Parameter{VO2, VCO2, RER, HEAT, XTOT, XAMB, FEED}
}

// ParseParameter resolves a case-insensitive parameter name.
func ParseParameter(s string) (Parameter, error) {
	p := Parameter(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := parameterUnits[p]; !ok {
		return "", fmt.Errorf("unknown parameter %q", s)
	}
	return p, nil
}

// Units returns the measurement units of the parameter.
func (p Parameter) Units() string {
	return parameterUnits[p]
}

// Class returns the aggregation class of the parameter.
func (p Parameter) Class() Class {
	switch p {
	case XTOT, XAMB:
		return Activity
	case FEED:
		return Feed
	default:
		return Metabolic
	}
}

// Decimals returns the rounding rule for result tables: three decimal
// places for RER, two for everything else.
func (p Parameter) Decimals() int {
	if p == RER {
		return 3
	}
	return 2
}

// Normalizable reports whether lean-mass normalization applies to the
// parameter. Only the metabolic gas-exchange channels are rescaled.
func (p Parameter) Normalizable() bool {
	return p == VO2 || p == VCO2 || p == HEAT
}
