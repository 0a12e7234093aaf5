// Package blend combines the local and global estimator probabilities
// into one calibrated fraud probability using a geo-aware weight table.
package blend

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// WeightPair is one row of the weighting policy. Weights must sum to 1.
type WeightPair struct {
	Local  float64 `json:"local"`
	Global float64 `json:"global"`
}

// WeightTable maps each of the four geo-context cases to a weight pair.
// It is an explicit, immutable policy injected into the Blender so tests
// can substitute alternates without code changes.
type WeightTable struct {
	BothInRegion     WeightPair `json:"bothInRegion"`
	UserInRegion     WeightPair `json:"userInRegion"`
	MerchantInRegion WeightPair `json:"merchantInRegion"`
	International    WeightPair `json:"international"`
}

// DefaultWeightTable is the canonical policy: the in-region model is
// trusted most for fully local pairs and phased out as the transaction
// becomes international.
func DefaultWeightTable() WeightTable {
	return WeightTable{
		BothInRegion:     WeightPair{Local: 0.75, Global: 0.25},
		UserInRegion:     WeightPair{Local: 0.55, Global: 0.45},
		MerchantInRegion: WeightPair{Local: 0.40, Global: 0.60},
		International:    WeightPair{Local: 0.10, Global: 0.90},
	}
}

// Blender computes blended scores from estimator outputs.
type Blender struct {
	table WeightTable
}

// NewBlender creates a blender with the given weight table.
func NewBlender(table WeightTable) *Blender {
	return &Blender{table: table}
}

// Blend computes the weighted fraud probability for a geo context.
// It is pure and total: every geo context maps to exactly one case and
// the result is clamped to [0, 1].
func (b *Blender) Blend(localProb, globalProb float64, geo domain.GeoContext) domain.BlendedScore {
	pair, branch := b.selectCase(geo)

	p := pair.Local*clamp01(localProb) + pair.Global*clamp01(globalProb)

	return domain.BlendedScore{
		Probability:  clamp01(p),
		LocalWeight:  pair.Local,
		GlobalWeight: pair.Global,
		Case:         branch,
	}
}

// Table returns the active weight table.
func (b *Blender) Table() WeightTable {
	return b.table
}

func (b *Blender) selectCase(geo domain.GeoContext) (WeightPair, domain.BlendCase) {
	switch {
	case geo.UserInRegion && geo.MerchantInRegion:
		return b.table.BothInRegion, domain.BlendBothInRegion
	case geo.UserInRegion:
		return b.table.UserInRegion, domain.BlendUserInRegion
	case geo.MerchantInRegion:
		return b.table.MerchantInRegion, domain.BlendMerchantInRegion
	default:
		return b.table.International, domain.BlendInternational
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
