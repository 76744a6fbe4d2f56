package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/demand-cli/internal/model"
)

func product(asin string, price float64, reviews int) model.CanonicalProduct {
	return model.CanonicalProduct{
		ASIN:        asin,
		Price:       price,
		Rating:      4.5,
		ReviewCount: reviews,
	}
}

func TestComputePriceStats(t *testing.T) {
	products := []model.CanonicalProduct{
		product("B0AAAAAAAA", 10, 100),
		product("B0BBBBBBBB", 30, 100),
		product("B0CCCCCCCC", 0, 100), // missing price is ignored
		product("B0DDDDDDDD", 20, 100),
	}

	stats := ComputePriceStats(products)
	assert.Equal(t, 10.0, stats.Min)
	assert.Equal(t, 20.0, stats.Avg)
	assert.Equal(t, 30.0, stats.Max)
}

func TestComputePriceStats_Empty(t *testing.T) {
	stats := ComputePriceStats(nil)
	assert.Zero(t, stats.Min)
	assert.Zero(t, stats.Avg)
	assert.Zero(t, stats.Max)
}

func TestClassifyShape(t *testing.T) {
	p := DefaultPolicy()

	// Expensive page is durable regardless of volume.
	assert.Equal(t, model.ShapeDurable, ClassifyShape(450, 49, p))

	// Cheap full page clears the volume threshold:
	// 49 * 1800 * clamp(sqrt(75/8), 0.4, 3.0) = 49 * 1800 * 3.0 = 264600 >= 80k.
	assert.Equal(t, model.ShapeConsumable, ClassifyShape(8, 49, p))

	// A thin page misses the volume threshold even at the same price:
	// 5 * 1800 * 3.0 = 27000 < 80k.
	assert.Equal(t, model.ShapeHybrid, ClassifyShape(8, 5, p))

	// Mid price page is hybrid.
	assert.Equal(t, model.ShapeHybrid, ClassifyShape(60, 49, p))

	// Raising the volume threshold flips the cheap page back to hybrid.
	p.ConsumableVolumeThreshold = 300_000
	assert.Equal(t, model.ShapeHybrid, ClassifyShape(8, 49, p))
}

func TestEstimateTotals_ShapeAndPriceScale(t *testing.T) {
	p := DefaultPolicy()
	products := []model.CanonicalProduct{
		product("B0AAAAAAAA", 400, 100),
		product("B0BBBBBBBB", 500, 200),
	}

	totals := EstimateTotals(products, "appliances", p)
	assert.Equal(t, model.ShapeDurable, totals.Shape)
	assert.Equal(t, "appliances", totals.Category)
	assert.Equal(t, 400.0, totals.PriceMin)
	assert.Equal(t, 450.0, totals.PriceAvg)
	assert.Equal(t, 500.0, totals.PriceMax)

	// units = 120 * clamp(sqrt(75/450), 0.4, 3.0) * 2 = 120 * 0.40825 * 2 = 97.98 -> 98
	assert.Equal(t, 98, totals.Units)
	assert.InDelta(t, totals.PriceAvg*98, totals.Revenue, totals.PriceAvg)
}

func TestEstimateTotals_EmptyPage(t *testing.T) {
	totals := EstimateTotals(nil, "", DefaultPolicy())
	assert.Zero(t, totals.Units)
	assert.Zero(t, totals.Revenue)
}

func TestCalibrate_ClampsCombinedFactor(t *testing.T) {
	p := DefaultPolicy()
	p.TrustedBand = 10 // force the factor past the clamp

	products := []model.CanonicalProduct{
		product("B0AAAAAAAA", 20, 100),
		product("B0BBBBBBBB", 22, 110),
	}
	totals := model.MarketTotals{Units: 1000, Revenue: 21_000, PriceMin: 20, PriceAvg: 21, PriceMax: 22}

	out := Calibrate(totals, products, p)
	// Factor clamped to CalibrationFactorMax.
	assert.Equal(t, int(1000*p.CalibrationFactorMax), out.Units)
}

func TestCalibrate_NoProductsNoChange(t *testing.T) {
	totals := model.MarketTotals{Units: 500, Revenue: 5000}
	assert.Equal(t, totals, Calibrate(totals, nil, DefaultPolicy()))
}

func TestCalibrate_UniformPageNudgesUp(t *testing.T) {
	p := DefaultPolicy()
	var products []model.CanonicalProduct
	for i := 0; i < 30; i++ {
		prod := product("B0AAAAAAAA", 20, 100+i)
		prod.AppearsSponsored = i < 15 // heavy sponsorship
		products = append(products, prod)
	}
	totals := model.MarketTotals{Units: 1000, Revenue: 20_000, PriceMin: 20, PriceAvg: 20, PriceMax: 20}

	out := Calibrate(totals, products, p)
	// Tight band (1.0) * low dispersion (1.05) * full page (1.0) * dense sponsorship (1.15) = 1.2075
	assert.Equal(t, 1208, out.Units)
}

func TestCalibrate_HeuristicFactorsComeFromPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.DispersionLowFactor = 1.2

	var products []model.CanonicalProduct
	for i := 0; i < 30; i++ {
		prod := product("B0AAAAAAAA", 20, 100+i)
		prod.AppearsSponsored = i < 15
		products = append(products, prod)
	}
	totals := model.MarketTotals{Units: 1000, Revenue: 20_000, PriceMin: 20, PriceAvg: 20, PriceMax: 20}

	out := Calibrate(totals, products, p)
	// Same page as above with the low-dispersion factor overridden:
	// 1.0 * 1.2 * 1.0 * 1.15 = 1.38
	assert.Equal(t, 1380, out.Units)
}

func TestMedians(t *testing.T) {
	products := []model.CanonicalProduct{
		{Price: 10, Rating: 4.0, ReviewCount: 100},
		{Price: 20, Rating: 4.5, ReviewCount: 300},
		{Price: 30, Rating: 5.0, ReviewCount: 0}, // zero review count excluded
	}

	assert.Equal(t, 20.0, MedianPrice(products))
	assert.Equal(t, 4.5, MedianRating(products))
	assert.Equal(t, 200.0, MedianReviews(products))

	assert.Zero(t, MedianPrice(nil))
}

func TestNormalizeShape(t *testing.T) {
	assert.Equal(t, "durable", NormalizeShape("  Durable "))
	assert.Equal(t, "", NormalizeShape(""))
}

func TestApplyProfile_NilProfileIsIdentity(t *testing.T) {
	products := []model.CanonicalProduct{product("B0AAAAAAAA", 20, 100)}
	out, meta := ApplyProfile(products, nil, "", DefaultPolicy())
	assert.Equal(t, products, out)
	assert.Equal(t, 1.0, meta.UnitsMultiplier)
	assert.Equal(t, model.CalibrationSourceDefault, meta.Source)
}

func TestApplyProfile_ScalesAndConservesTotal(t *testing.T) {
	products := []model.CanonicalProduct{
		{ASIN: "B0AAAAAAAA", EstimatedMonthlyUnits: 100, EstimatedMonthlyRevenue: 2000},
		{ASIN: "B0BBBBBBBB", EstimatedMonthlyUnits: 33, EstimatedMonthlyRevenue: 660},
		{ASIN: "B0CCCCCCCC", EstimatedMonthlyUnits: 17, EstimatedMonthlyRevenue: 340},
	}
	profile := &model.CalibrationProfile{
		Keyword:           "garlic press",
		UnitsMultiplier:   1.5,
		RevenueMultiplier: 1.5,
		Confidence:        model.ConfidenceHigh,
	}

	out, meta := ApplyProfile(products, profile, "", DefaultPolicy())
	require.Len(t, out, 3)
	assert.Equal(t, 1.5, meta.UnitsMultiplier)
	assert.Equal(t, model.CalibrationSourceProfile, meta.Source)
	assert.Equal(t, model.ConfidenceHigh, meta.Confidence)

	var total int
	for _, p := range out {
		total += p.EstimatedMonthlyUnits
	}
	// 150 units before, exactly 225 after despite per-listing rounding.
	assert.Equal(t, 225, total)

	// Originals untouched.
	assert.Equal(t, 100, products[0].EstimatedMonthlyUnits)
}

func TestApplyProfile_ClampsExtremeMultipliers(t *testing.T) {
	products := []model.CanonicalProduct{
		{ASIN: "B0AAAAAAAA", EstimatedMonthlyUnits: 100, EstimatedMonthlyRevenue: 2000},
	}
	profile := &model.CalibrationProfile{Keyword: "kw", UnitsMultiplier: 500, RevenueMultiplier: 0.001}

	out, meta := ApplyProfile(products, profile, "", DefaultPolicy())
	assert.Equal(t, 10.0, meta.UnitsMultiplier)
	assert.Equal(t, 0.1, meta.RevenueMultiplier)
	assert.Equal(t, 1000, out[0].EstimatedMonthlyUnits)
	assert.Equal(t, 200.0, out[0].EstimatedMonthlyRevenue)
}

func TestApplyProfile_CategoryMismatchDropsConfidence(t *testing.T) {
	products := []model.CanonicalProduct{
		{ASIN: "B0AAAAAAAA", EstimatedMonthlyUnits: 100, EstimatedMonthlyRevenue: 2000},
	}
	profile := &model.CalibrationProfile{
		Keyword:           "kw",
		Category:          "kitchen",
		UnitsMultiplier:   1.2,
		RevenueMultiplier: 1.2,
		Confidence:        model.ConfidenceHigh,
	}

	_, meta := ApplyProfile(products, profile, "grocery", DefaultPolicy())
	assert.Equal(t, model.ConfidenceLow, meta.Confidence)
	assert.Equal(t, model.CalibrationSourceMismatch, meta.Source)

	// Same category keeps the profile's confidence.
	_, meta = ApplyProfile(products, profile, "Kitchen", DefaultPolicy())
	assert.Equal(t, model.ConfidenceHigh, meta.Confidence)
	assert.Equal(t, model.CalibrationSourceProfile, meta.Source)
}

func TestRecomputeShares(t *testing.T) {
	products := []model.CanonicalProduct{
		{EstimatedMonthlyRevenue: 750},
		{EstimatedMonthlyRevenue: 250},
	}
	RecomputeShares(products)
	assert.Equal(t, 75.0, products[0].RevenueSharePct)
	assert.Equal(t, 25.0, products[1].RevenueSharePct)

	zero := []model.CanonicalProduct{{EstimatedMonthlyRevenue: 0}}
	RecomputeShares(zero)
	assert.Zero(t, zero[0].RevenueSharePct)
}
