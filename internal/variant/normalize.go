// Package variant re-splits a variant group's combined allocation across its
// children while preserving the group total.
package variant

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

// Normalize groups products by variant-group key (the product's own ASIN when
// no parent is set) and, for every group with more than one member,
// redistributes the group's combined units and revenue by review/rating/price
// weight. Any child with nonzero revenue keeps at least one unit, and the
// integer rounding remainder lands on the group's current-largest child so
// the group total is conserved exactly. Revenue shares must be recomputed by
// the caller afterwards; this is the final externally visible split.
func Normalize(products []model.CanonicalProduct, p estimate.Policy) int {
	groups := make(map[string][]int)
	var keys []string
	for i := range products {
		key := products[i].ParentASIN
		if key == "" {
			key = products[i].ASIN
		}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], i)
	}
	sort.Strings(keys)

	normalized := 0
	for _, key := range keys {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		redistribute(products, members, p)
		normalized++
	}

	if normalized > 0 {
		zap.L().Debug("variant: groups normalized", zap.Int("groups", normalized))
	}
	return normalized
}

func redistribute(products []model.CanonicalProduct, members []int, p estimate.Policy) {
	groupUnits := 0
	var groupRevenue float64
	var prices []float64
	for _, i := range members {
		groupUnits += products[i].EstimatedMonthlyUnits
		groupRevenue += products[i].EstimatedMonthlyRevenue
		if products[i].Price > 0 {
			prices = append(prices, products[i].Price)
		}
	}
	if groupUnits == 0 && groupRevenue == 0 {
		return
	}

	sort.Float64s(prices)
	var medPrice float64
	if n := len(prices); n > 0 {
		if n%2 == 1 {
			medPrice = prices[n/2]
		} else {
			medPrice = (prices[n/2-1] + prices[n/2]) / 2
		}
	}

	weights := make([]float64, len(members))
	var weightSum float64
	for n, i := range members {
		prod := &products[i]
		ratingFactor := p.TailRatingFallback
		if prod.Rating > 0 {
			ratingFactor = prod.Rating / 5
		}
		w := math.Log(float64(prod.ReviewCount)+10) * ratingFactor * priceAffinity(prod.Price, medPrice, p.PriceWeightFloor)
		weights[n] = w
		weightSum += w
	}
	if weightSum <= 0 {
		return
	}

	assignedUnits := 0
	var assignedRevenue float64
	for n, i := range members {
		prod := &products[i]
		share := weights[n] / weightSum

		units := int(math.Round(float64(groupUnits) * share))
		rev := math.Round(groupRevenue*share*100) / 100
		if rev > 0 && units < 1 {
			units = 1
		}

		prod.EstimatedMonthlyUnits = units
		prod.EstimatedMonthlyRevenue = rev
		assignedUnits += units
		assignedRevenue += rev
	}

	// Remainder to the current-largest child; lowest ASIN breaks ties.
	largest := members[0]
	for _, i := range members[1:] {
		if products[i].EstimatedMonthlyUnits > products[largest].EstimatedMonthlyUnits ||
			(products[i].EstimatedMonthlyUnits == products[largest].EstimatedMonthlyUnits &&
				products[i].ASIN < products[largest].ASIN) {
			largest = i
		}
	}
	if drift := groupUnits - assignedUnits; drift != 0 && products[largest].EstimatedMonthlyUnits+drift >= 0 {
		products[largest].EstimatedMonthlyUnits += drift
	}
	if drift := math.Round((groupRevenue-assignedRevenue)*100) / 100; drift != 0 {
		products[largest].EstimatedMonthlyRevenue = math.Round((products[largest].EstimatedMonthlyRevenue+drift)*100) / 100
	}
}

// priceAffinity favors children priced near the group median, floored so an
// outlier variant never drops out of the split entirely. The floor is the
// same one the allocator uses for its price weight.
func priceAffinity(price, median, floor float64) float64 {
	if median <= 0 || price <= 0 {
		return 1.0
	}
	return math.Max(floor, 1-math.Abs(price-median)/median)
}
