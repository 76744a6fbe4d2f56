package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

func child(asin, parent string, units int, revenue float64, reviews int, rating, price float64) model.CanonicalProduct {
	return model.CanonicalProduct{
		ASIN:                    asin,
		ParentASIN:              parent,
		EstimatedMonthlyUnits:   units,
		EstimatedMonthlyRevenue: revenue,
		ReviewCount:             reviews,
		Rating:                  rating,
		Price:                   price,
	}
}

func TestNormalize_ConservesGroupTotals(t *testing.T) {
	p := estimate.DefaultPolicy()
	products := []model.CanonicalProduct{
		child("B0CHILD001", "B0PARENT00", 300, 6000, 900, 4.7, 20),
		child("B0CHILD002", "B0PARENT00", 100, 2000, 50, 4.2, 21),
		child("B0CHILD003", "B0PARENT00", 50, 1000, 10, 3.9, 19),
		child("B0LONER001", "", 80, 1600, 200, 4.5, 20),
	}

	normalized := Normalize(products, p)
	assert.Equal(t, 1, normalized)

	var groupUnits int
	var groupRevenue float64
	for _, prod := range products[:3] {
		groupUnits += prod.EstimatedMonthlyUnits
		groupRevenue += prod.EstimatedMonthlyRevenue
	}
	assert.Equal(t, 450, groupUnits)
	assert.InDelta(t, 9000, groupRevenue, 0.01)

	// The heavily reviewed child keeps the largest cut.
	assert.Greater(t, products[0].EstimatedMonthlyUnits, products[1].EstimatedMonthlyUnits)
	assert.Greater(t, products[1].EstimatedMonthlyUnits, products[2].EstimatedMonthlyUnits)

	// Ungrouped product untouched.
	assert.Equal(t, 80, products[3].EstimatedMonthlyUnits)
}

func TestNormalize_SingleMemberGroupsUntouched(t *testing.T) {
	p := estimate.DefaultPolicy()
	products := []model.CanonicalProduct{
		child("B0CHILD001", "B0PARENT00", 100, 2000, 100, 4.5, 20),
		child("B0CHILD002", "B0PARENT11", 200, 4000, 100, 4.5, 20),
	}

	assert.Zero(t, Normalize(products, p))
	assert.Equal(t, 100, products[0].EstimatedMonthlyUnits)
	assert.Equal(t, 200, products[1].EstimatedMonthlyUnits)
}

func TestNormalize_NonzeroRevenueChildKeepsAUnit(t *testing.T) {
	p := estimate.DefaultPolicy()
	// A near-zero-weight child with real revenue must not round down to zero
	// units while carrying money.
	products := []model.CanonicalProduct{
		child("B0CHILD001", "B0PARENT00", 1000, 20000, 100_000, 5.0, 20),
		child("B0CHILD002", "B0PARENT00", 1, 20, 0, 0, 20),
	}

	Normalize(products, p)
	if products[1].EstimatedMonthlyRevenue > 0 {
		assert.GreaterOrEqual(t, products[1].EstimatedMonthlyUnits, 1)
	}
	assert.Equal(t, 1001, products[0].EstimatedMonthlyUnits+products[1].EstimatedMonthlyUnits)
}

func TestNormalize_ZeroGroupNoop(t *testing.T) {
	p := estimate.DefaultPolicy()
	products := []model.CanonicalProduct{
		child("B0CHILD001", "B0PARENT00", 0, 0, 10, 4.0, 20),
		child("B0CHILD002", "B0PARENT00", 0, 0, 20, 4.5, 20),
	}

	Normalize(products, p)
	assert.Zero(t, products[0].EstimatedMonthlyUnits)
	assert.Zero(t, products[1].EstimatedMonthlyUnits)
}

func TestNormalize_DeterministicAcrossOrder(t *testing.T) {
	p := estimate.DefaultPolicy()
	build := func() []model.CanonicalProduct {
		return []model.CanonicalProduct{
			child("B0CHILD001", "B0PARENT00", 120, 2400, 300, 4.6, 20),
			child("B0CHILD002", "B0PARENT00", 80, 1600, 150, 4.4, 22),
		}
	}

	a := build()
	b := build()
	Normalize(a, p)
	Normalize(b, p)
	require.Equal(t, a, b)
}

func TestPriceAffinity(t *testing.T) {
	floor := estimate.DefaultPolicy().PriceWeightFloor
	assert.Equal(t, 1.0, priceAffinity(20, 20, floor))
	assert.InDelta(t, 0.9, priceAffinity(18, 20, floor), 1e-9)
	// Outliers floor at the policy's price weight floor instead of dropping out.
	assert.Equal(t, floor, priceAffinity(100, 20, floor))
	assert.Equal(t, 1.0, priceAffinity(0, 20, floor))
	assert.Equal(t, 1.0, priceAffinity(20, 0, floor))
}
