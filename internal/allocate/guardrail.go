package allocate

import (
	"math"

	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

// ApplyGuardrails clamps implausible post-refinement allocations. It only
// raises units, never lowers them, and never re-ranks:
//
//   - a listing with more than ReviewFloorThreshold reviews sells at least
//     ReviewFloorUnits units; hundreds of reviews do not come from nothing,
//   - an organic listing deeper than DeepRankThreshold that landed on zero
//     gets a floor derived from the tail minimum.
func ApplyGuardrails(products []model.CanonicalProduct, stats RefineStats, p estimate.Policy) int {
	adjusted := 0
	for i := range products {
		prod := &products[i]

		if prod.ReviewCount > p.ReviewFloorThreshold && prod.EstimatedMonthlyUnits < p.ReviewFloorUnits {
			prod.EstimatedMonthlyUnits = p.ReviewFloorUnits
			prod.EstimatedMonthlyRevenue = revenue(prod.EstimatedMonthlyUnits, prod.Price)
			adjusted++
			continue
		}

		if prod.Organic() && *prod.OrganicRank > p.DeepRankThreshold && prod.EstimatedMonthlyUnits == 0 {
			floor := int(math.Round(p.DeepRankFloorFrac * stats.TailFloor))
			if floor < p.DeepRankFloorMin {
				floor = p.DeepRankFloorMin
			}
			prod.EstimatedMonthlyUnits = floor
			prod.EstimatedMonthlyRevenue = revenue(floor, prod.Price)
			adjusted++
		}
	}

	if adjusted > 0 {
		zap.L().Debug("allocate: guardrails adjusted listings", zap.Int("adjusted", adjusted))
	}
	return adjusted
}
