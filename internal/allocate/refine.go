package allocate

import (
	"math"

	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

// RefineStats carries bookkeeping out of the three-phase refinement for the
// guardrails, the scaling stages and telemetry.
type RefineStats struct {
	AnchorUnits   int     `json:"anchor_units"`
	TailCount     int     `json:"tail_count"`
	TailFloor     float64 `json:"tail_floor"` // per-listing tail minimum, in units
	FlooredRanks  []int   `json:"floored_ranks,omitempty"`
	Rescaled      bool    `json:"rescaled"`
	RescaleFactor float64 `json:"rescale_factor,omitempty"`
	SearchVolume  float64 `json:"effective_search_volume"`
}

// Refine runs the deterministic three-phase refinement, superseding the raw
// allocation for organic listings.
//
// Phase 1 hands the anchor share of the target to ranks 1..AnchorCount on an
// exponential decay, clamped between a price-sensitive minimum and a fraction
// of the effective search volume. Phase 2 spreads the remainder over the tail
// by review/rank/rating weight with a per-listing floor, and gives
// sponsored-only products an equal cut of a flat pool. Phase 3 rescales
// everything when the allocated total drifts from target beyond tolerance.
func Refine(
	products []model.CanonicalProduct,
	totals model.MarketTotals,
	bounds *model.SearchVolumeBounds,
	p estimate.Policy,
) RefineStats {
	stats := RefineStats{}
	if len(products) == 0 || totals.Units <= 0 {
		return stats
	}

	target := float64(totals.Units)
	medPrice := estimate.MedianPrice(products)

	stats.SearchVolume = bounds.Mean()
	if stats.SearchVolume <= 0 {
		stats.SearchVolume = p.SearchVolumeFallback * target
	}
	anchorMax := p.AnchorSearchVolumeCap * stats.SearchVolume

	// Phase 1: anchors.
	denom := 0.0
	for i := 0; i < p.AnchorCount; i++ {
		denom += math.Exp(-p.AnchorDecay * float64(i))
	}
	for i := range products {
		prod := &products[i]
		if !prod.Organic() || *prod.OrganicRank > p.AnchorCount {
			continue
		}
		r := *prod.OrganicRank
		units := target * p.AnchorShare * math.Exp(-p.AnchorDecay*float64(r-1)) / denom

		minUnits := p.AnchorMinUnits
		if medPrice > 0 && prod.Price < medPrice {
			minUnits = p.AnchorMinUnitsCheap
		}
		if minUnits < 1 {
			minUnits = 1
		}
		units = estimate.Clamp(units, float64(minUnits), anchorMax)

		prod.EstimatedMonthlyUnits = int(math.Round(units))
		prod.EstimatedMonthlyRevenue = revenue(prod.EstimatedMonthlyUnits, prod.Price)
		stats.AnchorUnits += prod.EstimatedMonthlyUnits
	}

	// Phase 2: organic tail.
	type tailEntry struct {
		idx    int
		weight float64
	}
	var tail []tailEntry
	var tailWeightSum float64
	for i := range products {
		prod := &products[i]
		if !prod.Organic() || *prod.OrganicRank <= p.AnchorCount {
			continue
		}
		ratingFactor := p.TailRatingFallback
		if prod.Rating > 0 {
			ratingFactor = prod.Rating / 5
		}
		w := math.Log(float64(prod.ReviewCount)+10) *
			(1 / math.Sqrt(float64(*prod.OrganicRank))) *
			ratingFactor
		tail = append(tail, tailEntry{idx: i, weight: w})
		tailWeightSum += w
	}
	stats.TailCount = len(tail)

	if len(tail) > 0 {
		pool := math.Max(0, target-float64(stats.AnchorUnits))
		stats.TailFloor = p.TailFloorFrac * float64(stats.AnchorUnits) / float64(len(tail))
		for _, e := range tail {
			prod := &products[e.idx]
			units := 0.0
			if tailWeightSum > 0 {
				units = pool * e.weight / tailWeightSum
			}
			if units < stats.TailFloor {
				units = stats.TailFloor
				stats.FlooredRanks = append(stats.FlooredRanks, *prod.OrganicRank)
			}
			prod.EstimatedMonthlyUnits = int(math.Round(units))
			prod.EstimatedMonthlyRevenue = revenue(prod.EstimatedMonthlyUnits, prod.Price)
		}
	}

	// Sponsored-only products share a flat pool equally.
	var sponsoredIdx []int
	for i := range products {
		if !products[i].Organic() {
			sponsoredIdx = append(sponsoredIdx, i)
		}
	}
	if len(sponsoredIdx) > 0 {
		each := int(math.Round(p.SponsoredPoolShare * target / float64(len(sponsoredIdx))))
		for _, i := range sponsoredIdx {
			products[i].EstimatedMonthlyUnits = each
			products[i].EstimatedMonthlyRevenue = revenue(each, products[i].Price)
		}
	}

	// Phase 3: conservation.
	allocated := 0
	for i := range products {
		allocated += products[i].EstimatedMonthlyUnits
	}
	if allocated > 0 && math.Abs(float64(allocated)-target)/target > p.ConservationTolerance {
		factor := target / float64(allocated)
		stats.Rescaled = true
		stats.RescaleFactor = factor
		for i := range products {
			prod := &products[i]
			units := int(math.Round(float64(prod.EstimatedMonthlyUnits) * factor))
			if prod.Organic() && units < 1 {
				units = 1
			}
			prod.EstimatedMonthlyUnits = units
			prod.EstimatedMonthlyRevenue = revenue(units, prod.Price)
		}
		zap.L().Debug("allocate: conservation rescale",
			zap.Int("allocated", allocated),
			zap.Float64("target", target),
			zap.Float64("factor", factor),
		)
	}

	return stats
}
