package allocate

import (
	"math"

	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

// StageChange records one page-level scaling stage for telemetry.
type StageChange struct {
	Stage       string  `json:"stage"`
	UnitsBefore int     `json:"units_before"`
	UnitsAfter  int     `json:"units_after"`
	Factor      float64 `json:"factor,omitempty"`
}

// Scale runs the fixed, ordered sequence of page-level scaling stages and
// returns the updated totals (the stages intentionally move the page total)
// plus a change record per stage:
//
//	a. market-size expansion toward the reference point, clamped
//	b. durable-only rank absorption caps with excess spread over middle ranks
//	c. consumable-only relaxation of the forced tail floor
//	d. final alignment multiplier against the external benchmark
//	e. per-listing BSR decay, cutoff and unit cap, with the review floor and
//	   the one-unit organic floor re-applied after
//
// Revenue and revenue shares are recomputed after every stage that changes
// totals.
func Scale(
	products []model.CanonicalProduct,
	totals model.MarketTotals,
	stats RefineStats,
	p estimate.Policy,
) (model.MarketTotals, []StageChange) {
	var changes []StageChange
	if len(products) == 0 {
		return totals, changes
	}

	record := func(stage string, before int, factor float64) {
		after := unitSum(products)
		if after != before {
			estimate.RecomputeShares(products)
		}
		changes = append(changes, StageChange{
			Stage:       stage,
			UnitsBefore: before,
			UnitsAfter:  after,
			Factor:      factor,
		})
	}

	shape := estimate.NormalizeShape(totals.Shape)

	// Stage a: market-size expansion.
	before := unitSum(products)
	factor := expansionFactor(products, before, p)
	if factor > 1 {
		for i := range products {
			prod := &products[i]
			prod.EstimatedMonthlyUnits = int(math.Round(float64(prod.EstimatedMonthlyUnits) * factor))
			prod.EstimatedMonthlyRevenue = revenue(prod.EstimatedMonthlyUnits, prod.Price)
		}
	}
	record("expansion", before, factor)

	// Stage b: rank absorption, durable markets only.
	before = unitSum(products)
	if shape == model.ShapeDurable {
		absorb(products, p)
	}
	record("rank_absorption", before, 0)

	// Stage c: tail-floor relaxation, consumable markets only.
	before = unitSum(products)
	if shape == model.ShapeConsumable {
		relaxTail(products, stats, p)
	}
	record("tail_relaxation", before, 0)

	// Stage d: alignment multiplier.
	before = unitSum(products)
	for i := range products {
		prod := &products[i]
		units := int(math.Round(float64(prod.EstimatedMonthlyUnits) * p.AlignmentMultiplier))
		if prod.Organic() && units < 1 {
			units = 1
		}
		prod.EstimatedMonthlyUnits = units
		prod.EstimatedMonthlyRevenue = revenue(units, prod.Price)
	}
	record("alignment", before, p.AlignmentMultiplier)

	// Stage e: BSR decay and unit cap. This is the last stage that can lower
	// units, so the review and organic floors are re-applied here.
	before = unitSum(products)
	for i := range products {
		prod := &products[i]
		if prod.BSR != nil {
			bsr := *prod.BSR
			if bsr > p.BSRCutoff {
				prod.EstimatedMonthlyUnits = 0
			} else if bsr > 0 {
				decayed := float64(prod.EstimatedMonthlyUnits) * math.Exp(-float64(bsr)/p.BSRDecayScale)
				prod.EstimatedMonthlyUnits = int(math.Round(decayed))
			}
		}
		if prod.EstimatedMonthlyUnits > p.UnitCap {
			prod.EstimatedMonthlyUnits = p.UnitCap
		}
		if prod.ReviewCount > p.ReviewFloorThreshold && prod.EstimatedMonthlyUnits < p.ReviewFloorUnits {
			prod.EstimatedMonthlyUnits = p.ReviewFloorUnits
		}
		if prod.Organic() && prod.EstimatedMonthlyUnits < 1 {
			prod.EstimatedMonthlyUnits = 1
		}
		prod.EstimatedMonthlyRevenue = revenue(prod.EstimatedMonthlyUnits, prod.Price)
	}
	record("bsr_decay", before, 0)

	// The stages deliberately move the page total; the reported target
	// follows the final allocation.
	out := totals
	out.Units = unitSum(products)
	out.Revenue = revenueSum(products)

	zap.L().Debug("allocate: scaling stages complete",
		zap.String("shape", shape),
		zap.Int("units", out.Units),
		zap.Float64("revenue", out.Revenue),
	)

	return out, changes
}

// expansionFactor targets the reference point: rank-1 units when a rank-1
// listing exists, the page total otherwise. Clamped to [1, ExpansionMax].
func expansionFactor(products []model.CanonicalProduct, total int, p estimate.Policy) float64 {
	var rankOneUnits int
	for i := range products {
		if products[i].Organic() && *products[i].OrganicRank == 1 {
			rankOneUnits = products[i].EstimatedMonthlyUnits
			break
		}
	}

	factor := 1.0
	switch {
	case rankOneUnits > 0:
		factor = p.ExpansionRankOneTarget / float64(rankOneUnits)
	case total > 0:
		factor = p.ExpansionPageTarget / float64(total)
	}
	return estimate.Clamp(factor, 1, p.ExpansionMax)
}

// absorb caps rank-1 and top-3 shares of the page total and redistributes the
// shaved units over the middle ranks proportionally to their current units.
// High-ticket durable goods never concentrate the way raw rank decay implies.
func absorb(products []model.CanonicalProduct, p estimate.Policy) {
	total := unitSum(products)
	if total == 0 {
		return
	}

	byRank := make(map[int]int) // organic rank -> index
	for i := range products {
		if products[i].Organic() {
			byRank[*products[i].OrganicRank] = i
		}
	}

	var spread []int
	for r := p.AbsorptionSpreadFrom; r <= p.AbsorptionSpreadTo; r++ {
		if i, ok := byRank[r]; ok {
			spread = append(spread, i)
		}
	}
	if len(spread) == 0 {
		return
	}

	excess := 0

	if i, ok := byRank[1]; ok {
		cap1 := int(math.Round(p.AbsorptionRankOneCap * float64(total)))
		if products[i].EstimatedMonthlyUnits > cap1 {
			excess += products[i].EstimatedMonthlyUnits - cap1
			products[i].EstimatedMonthlyUnits = cap1
			products[i].EstimatedMonthlyRevenue = revenue(cap1, products[i].Price)
		}
	}

	topThree := 0
	var topIdx []int
	for r := 1; r <= 3; r++ {
		if i, ok := byRank[r]; ok {
			topThree += products[i].EstimatedMonthlyUnits
			topIdx = append(topIdx, i)
		}
	}
	cap3 := int(math.Round(p.AbsorptionTopThreeCap * float64(total)))
	if topThree > cap3 && topThree > 0 {
		ratio := float64(cap3) / float64(topThree)
		for _, i := range topIdx {
			prod := &products[i]
			capped := int(math.Round(float64(prod.EstimatedMonthlyUnits) * ratio))
			excess += prod.EstimatedMonthlyUnits - capped
			prod.EstimatedMonthlyUnits = capped
			prod.EstimatedMonthlyRevenue = revenue(capped, prod.Price)
		}
	}

	if excess <= 0 {
		return
	}

	spreadTotal := 0
	for _, i := range spread {
		spreadTotal += products[i].EstimatedMonthlyUnits
	}
	remaining := excess
	for n, i := range spread {
		prod := &products[i]
		var add int
		if n == len(spread)-1 {
			add = remaining // last one takes the rounding remainder
		} else if spreadTotal > 0 {
			add = int(math.Round(float64(excess) * float64(prod.EstimatedMonthlyUnits) / float64(spreadTotal)))
		} else {
			add = excess / len(spread)
		}
		if add > remaining {
			add = remaining
		}
		prod.EstimatedMonthlyUnits += add
		prod.EstimatedMonthlyRevenue = revenue(prod.EstimatedMonthlyUnits, prod.Price)
		remaining -= add
	}

	zap.L().Debug("allocate: rank absorption applied",
		zap.Int("excess", excess),
		zap.Int("spread_listings", len(spread)),
	)
}

// relaxTail lets forced deep-tail minimums decay toward zero for consumable
// markets: fast-moving categories do not sustain a uniform floor past the
// visible tail. Organic listings keep at least one unit.
func relaxTail(products []model.CanonicalProduct, stats RefineStats, p estimate.Policy) {
	if stats.TailFloor <= 0 || len(stats.FlooredRanks) == 0 {
		return
	}
	floored := make(map[int]bool, len(stats.FlooredRanks))
	for _, r := range stats.FlooredRanks {
		floored[r] = true
	}

	for i := range products {
		prod := &products[i]
		if !prod.Organic() {
			continue
		}
		r := *prod.OrganicRank
		if r <= p.DeepRankThreshold || !floored[r] {
			continue
		}
		decayed := stats.TailFloor * math.Exp(-p.TailRelaxDecay*float64(r-p.DeepRankThreshold))
		units := int(math.Round(decayed))
		if units < 1 {
			units = 1
		}
		if units < prod.EstimatedMonthlyUnits {
			prod.EstimatedMonthlyUnits = units
			prod.EstimatedMonthlyRevenue = revenue(units, prod.Price)
		}
	}
}

func unitSum(products []model.CanonicalProduct) int {
	sum := 0
	for i := range products {
		sum += products[i].EstimatedMonthlyUnits
	}
	return sum
}

func revenueSum(products []model.CanonicalProduct) float64 {
	var sum float64
	for i := range products {
		sum += products[i].EstimatedMonthlyRevenue
	}
	return math.Round(sum*100) / 100
}
