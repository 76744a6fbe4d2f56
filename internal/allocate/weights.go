// Package allocate distributes the calibrated page-wide demand target across
// individual listings: proportional weights, a deterministic three-phase
// refinement, guardrail floors, and the ordered page-level scaling stages.
package allocate

import (
	"math"

	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

// RawAllocate distributes the target units proportionally to per-listing
// weights (rank x reviews x rating x price), flooring every listing at one
// unit. The three-phase refinement supersedes these figures for organic
// listings; the raw pass still seeds sponsored-only products and keeps the
// page total close to target before refinement.
func RawAllocate(products []model.CanonicalProduct, totals model.MarketTotals, p estimate.Policy) {
	if len(products) == 0 || totals.Units <= 0 {
		return
	}

	medReviews := estimate.MedianReviews(products)
	medRating := estimate.MedianRating(products)

	weights := make([]float64, len(products))
	var sum float64
	for i := range products {
		w := rankWeight(&products[i], p) *
			reviewWeight(products[i].ReviewCount, medReviews, p) *
			ratingPenalty(products[i].Rating, medRating, p) *
			priceWeight(products[i].Price, totals.PriceAvg, p)
		weights[i] = w
		sum += w
	}
	if sum <= 0 {
		return
	}

	for i := range products {
		units := int(math.Round(float64(totals.Units) * weights[i] / sum))
		if units < 1 {
			units = 1
		}
		products[i].EstimatedMonthlyUnits = units
		products[i].EstimatedMonthlyRevenue = revenue(units, products[i].Price)
	}

	zap.L().Debug("allocate: raw weights applied",
		zap.Int("listings", len(products)),
		zap.Int("target_units", totals.Units),
		zap.Float64("median_reviews", medReviews),
		zap.Float64("median_rating", medRating),
	)
}

// rankWeight = 1 / effective_rank^exponent. The effective rank is the organic
// rank when present, otherwise the raw page position.
func rankWeight(prod *model.CanonicalProduct, p estimate.Policy) float64 {
	rank := prod.EffectiveRank()
	if rank < 1 {
		rank = 1
	}
	return 1 / math.Pow(float64(rank), p.RankWeightExponent)
}

// reviewWeight scales by review count relative to the page median, clamped.
// Without a usable median or count the weight is neutral.
func reviewWeight(reviews int, median float64, p estimate.Policy) float64 {
	if median <= 0 || reviews <= 0 {
		return 1.0
	}
	return estimate.Clamp(float64(reviews)/median, p.ReviewWeightMin, p.ReviewWeightMax)
}

// ratingPenalty leaves listings at or above the median rating untouched and
// penalizes those below it, floored so a bad rating never zeroes a listing.
// A missing rating falls back to the median (neutral).
func ratingPenalty(rating, median float64, p estimate.Policy) float64 {
	if median <= 0 {
		return 1.0
	}
	if rating <= 0 {
		rating = median
	}
	if rating >= median {
		return 1.0
	}
	return math.Max(p.RatingPenaltyFloor, 1-(median-rating)*p.RatingPenaltySlope)
}

// priceWeight favors listings priced near the page average, floored.
func priceWeight(price, avg float64, p estimate.Policy) float64 {
	if avg <= 0 || price <= 0 {
		return 1.0
	}
	return math.Max(p.PriceWeightFloor, 1-p.PriceWeightSlope*math.Abs(price-avg)/avg)
}

func revenue(units int, price float64) float64 {
	return math.Round(float64(units)*price*100) / 100
}
