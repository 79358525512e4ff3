package clamser

import (
	"fmt"
	"sort"

	"github.com/ZaneKhartabill/clamser/oxymax"
)

// DefaultReferenceMassGrams is the reference lean mass readings are
// rescaled to when the caller supplies none.
const DefaultReferenceMassGrams = 20.0

// NormalizeResult carries mass-adjusted records alongside their
// untouched originals. Adjusted values are always derived from the
// preserved original, so re-normalizing is idempotent.
type NormalizeResult struct {
	Records []oxymax.Record // adjusted values, original order

	// UnadjustedCages lists cages with readings but no configured lean
	// mass; their values pass through unchanged.
	UnadjustedCages []string
}

// NormalizeLeanMass rescales metabolic readings to a common reference
// lean mass: adjusted = original * (referenceMass / leanMass), per cage.
// Cages missing from leanMass are left unadjusted and reported, not
// failed. Parameters outside VO2/VCO2/HEAT are rejected.
func NormalizeLeanMass(records []oxymax.Record, p Parameter, leanMass map[string]float64, referenceMass float64) (*NormalizeResult, error) {
	if !p.Normalizable() {
		return nil, fmt.Errorf("lean-mass normalization does not apply to %s", p)
	}
	if referenceMass <= 0 {
		return nil, fmt.Errorf("reference mass must be positive, got %g", referenceMass)
	}
	for cage, mass := range leanMass {
		if mass <= 0 {
			return nil, fmt.Errorf("lean mass for %s must be positive, got %g", cage, mass)
		}
	}

	out := make([]oxymax.Record, len(records))
	skipped := make(map[string]struct{})
	for i, r := range records {
		out[i] = r
		mass, ok := leanMass[r.CageID]
		if !ok {
			skipped[r.CageID] = struct{}{}
			continue
		}
		out[i].Value = r.Value * (referenceMass / mass)
	}

	unadjusted := make([]string, 0, len(skipped))
	for cage := range skipped {
		unadjusted = append(unadjusted, cage)
	}
	sort.Strings(unadjusted)
	return &NormalizeResult{Records: out, UnadjustedCages: unadjusted}, nil
}
