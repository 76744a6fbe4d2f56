package allocate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

func organic(asin string, rank int, price float64, rating float64, reviews int) model.CanonicalProduct {
	r := rank
	return model.CanonicalProduct{
		ASIN:         asin,
		OrganicRank:  &r,
		PagePosition: rank,
		Price:        price,
		Rating:       rating,
		ReviewCount:  reviews,
	}
}

func sponsoredOnly(asin string, pos int, price float64) model.CanonicalProduct {
	return model.CanonicalProduct{
		ASIN:               asin,
		PagePosition:       pos,
		AppearsSponsored:   true,
		SponsoredPositions: []int{pos},
		Price:              price,
		Rating:             4.0,
		ReviewCount:        50,
	}
}

func TestRawAllocate_RankOrdering(t *testing.T) {
	p := estimate.DefaultPolicy()
	products := []model.CanonicalProduct{
		organic("B0AAAAAAAA", 1, 20, 4.5, 100),
		organic("B0BBBBBBBB", 2, 20, 4.5, 100),
		organic("B0CCCCCCCC", 3, 20, 4.5, 100),
	}
	totals := model.MarketTotals{Units: 900, PriceAvg: 20}

	RawAllocate(products, totals, p)

	// Identical signals except rank: units strictly decrease with rank.
	assert.Greater(t, products[0].EstimatedMonthlyUnits, products[1].EstimatedMonthlyUnits)
	assert.Greater(t, products[1].EstimatedMonthlyUnits, products[2].EstimatedMonthlyUnits)

	sum := 0
	for _, prod := range products {
		require.GreaterOrEqual(t, prod.EstimatedMonthlyUnits, 1)
		sum += prod.EstimatedMonthlyUnits
	}
	assert.InDelta(t, 900, sum, 3) // rounding only
}

func TestRawAllocate_ReviewAndRatingSignals(t *testing.T) {
	p := estimate.DefaultPolicy()
	products := []model.CanonicalProduct{
		organic("B0AAAAAAAA", 1, 20, 4.8, 1000),
		organic("B0BBBBBBBB", 1, 20, 3.2, 10),
	}
	products[1].PagePosition = 1 // same rank, worse signals
	totals := model.MarketTotals{Units: 500, PriceAvg: 20}

	RawAllocate(products, totals, p)
	assert.Greater(t, products[0].EstimatedMonthlyUnits, products[1].EstimatedMonthlyUnits)
}

func TestRawAllocate_ZeroTargetNoop(t *testing.T) {
	products := []model.CanonicalProduct{organic("B0AAAAAAAA", 1, 20, 4.5, 100)}
	RawAllocate(products, model.MarketTotals{Units: 0}, estimate.DefaultPolicy())
	assert.Zero(t, products[0].EstimatedMonthlyUnits)
}

func TestReviewWeight_Clamped(t *testing.T) {
	p := estimate.DefaultPolicy()

	// 10x the median clamps at the max.
	assert.Equal(t, p.ReviewWeightMax, reviewWeight(1000, 100, p))
	// A tenth of the median clamps at the min.
	assert.Equal(t, p.ReviewWeightMin, reviewWeight(10, 100, p))
	// No reviews or no median is neutral.
	assert.Equal(t, 1.0, reviewWeight(0, 100, p))
	assert.Equal(t, 1.0, reviewWeight(100, 0, p))
}

func TestRatingPenalty_FloorAndNeutral(t *testing.T) {
	p := estimate.DefaultPolicy()

	// At or above median: no penalty.
	assert.Equal(t, 1.0, ratingPenalty(4.5, 4.5, p))
	assert.Equal(t, 1.0, ratingPenalty(4.9, 4.5, p))
	// Below median: 1 - (4.5-4.0)*0.5 = 0.75.
	assert.InDelta(t, 0.75, ratingPenalty(4.0, 4.5, p), 1e-9)
	// Far below: floored, never zero.
	assert.Equal(t, p.RatingPenaltyFloor, ratingPenalty(1.0, 4.8, p))
	// Missing rating falls back to the median.
	assert.Equal(t, 1.0, ratingPenalty(0, 4.5, p))
}

func TestPriceWeight_Floored(t *testing.T) {
	p := estimate.DefaultPolicy()

	assert.Equal(t, 1.0, priceWeight(20, 20, p))
	// 50% off the average: 1 - 0.2*0.5 = 0.9.
	assert.InDelta(t, 0.9, priceWeight(10, 20, p), 1e-9)
	// Extreme outlier hits the floor.
	assert.Equal(t, p.PriceWeightFloor, priceWeight(200, 20, p))
	assert.Equal(t, 1.0, priceWeight(0, 20, p))
}
