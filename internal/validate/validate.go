// Package validate recomputes the output invariants after allocation. Soft
// mismatches are logged and corrected; the engine is an estimation tool, not
// a ledger, and degrades gracefully. One state aborts hard: an organic-ranked
// listing ending at zero units is a logic defect, and emitting it would feed
// misleading output to sellers.
package validate

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

// ErrZeroUnitOrganic is returned when an organic, page-eligible listing ends
// allocation with zero units. Callers must fail the whole request.
var ErrZeroUnitOrganic = eris.New("validate: organic listing allocated zero units")

// Check verifies the final products against the reported totals. Unit and
// revenue sums beyond tolerance are logged and rescaled in place to match the
// totals exactly; revenue shares are refreshed afterwards. The zero-unit
// organic state returns ErrZeroUnitOrganic.
func Check(products []model.CanonicalProduct, totals model.MarketTotals, p estimate.Policy) error {
	for i := range products {
		prod := &products[i]
		if prod.Organic() && prod.EstimatedMonthlyUnits == 0 {
			return eris.Wrapf(ErrZeroUnitOrganic, "asin %s rank %d", prod.ASIN, *prod.OrganicRank)
		}
	}

	unitSum := 0
	var revenueSum float64
	for i := range products {
		unitSum += products[i].EstimatedMonthlyUnits
		revenueSum += products[i].EstimatedMonthlyRevenue
	}

	if totals.Units > 0 {
		drift := math.Abs(float64(unitSum-totals.Units)) / float64(totals.Units)
		if drift > p.ConservationTolerance {
			zap.L().Warn("validate: unit sum drifted from totals, rescaling",
				zap.Int("allocated", unitSum),
				zap.Int("target", totals.Units),
				zap.Float64("drift", drift),
			)
			rescale(products, float64(totals.Units)/float64(unitSum))
		}
	}

	if totals.Revenue > 0 && revenueSum > 0 {
		drift := math.Abs(revenueSum-totals.Revenue) / totals.Revenue
		if drift > p.ConservationTolerance {
			zap.L().Warn("validate: revenue sum drifted from totals",
				zap.Float64("allocated", revenueSum),
				zap.Float64("target", totals.Revenue),
				zap.Float64("drift", drift),
			)
		}
	}

	estimate.RecomputeShares(products)

	// Share sum is observability-only: log when it strays from 100.
	var shareSum float64
	for i := range products {
		shareSum += products[i].RevenueSharePct
	}
	if revenueSum > 0 && math.Abs(shareSum-100) > 0.1 {
		zap.L().Warn("validate: revenue shares do not sum to 100",
			zap.Float64("share_sum", shareSum),
		)
	}

	return nil
}

func rescale(products []model.CanonicalProduct, factor float64) {
	for i := range products {
		prod := &products[i]
		units := int(math.Round(float64(prod.EstimatedMonthlyUnits) * factor))
		if prod.Organic() && units < 1 {
			units = 1
		}
		prod.EstimatedMonthlyUnits = units
		prod.EstimatedMonthlyRevenue = math.Round(float64(units)*prod.Price*100) / 100
	}
}
