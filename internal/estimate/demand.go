package estimate

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/model"
)

// PriceStats summarizes the page's price distribution.
type PriceStats struct {
	Min float64
	Avg float64
	Max float64
}

// ComputePriceStats returns min/avg/max over positive listing prices.
func ComputePriceStats(products []model.CanonicalProduct) PriceStats {
	var stats PriceStats
	var sum float64
	n := 0
	for _, p := range products {
		if p.Price <= 0 {
			continue
		}
		if n == 0 || p.Price < stats.Min {
			stats.Min = p.Price
		}
		if p.Price > stats.Max {
			stats.Max = p.Price
		}
		sum += p.Price
		n++
	}
	if n > 0 {
		stats.Avg = sum / float64(n)
	}
	return stats
}

// ClassifyShape tags the market as durable, hybrid or consumable from the
// average price and a coarse volume guess. The coarse volume probes the
// consumable base: the question is whether the page could plausibly move
// consumable-scale volume.
func ClassifyShape(avgPrice float64, listingCount int, p Policy) string {
	if avgPrice >= p.DurablePriceThreshold {
		return model.ShapeDurable
	}
	coarse := float64(listingCount) * p.BaseUnitsConsumable * priceScale(avgPrice, p)
	if avgPrice > 0 && avgPrice <= p.ConsumablePriceThreshold && coarse >= p.ConsumableVolumeThreshold {
		return model.ShapeConsumable
	}
	return model.ShapeHybrid
}

// priceScale maps the average price onto a base-units multiplier: cheap pages
// scale up, expensive pages scale down.
func priceScale(avgPrice float64, p Policy) float64 {
	if avgPrice <= 0 {
		return 1.0
	}
	return Clamp(math.Sqrt(p.PriceScaleReference/avgPrice), p.PriceScaleMin, p.PriceScaleMax)
}

// EstimateTotals produces the rough page-wide demand target. The output is
// intentionally coarse; Calibrate corrects it before allocation.
func EstimateTotals(products []model.CanonicalProduct, category string, p Policy) model.MarketTotals {
	stats := ComputePriceStats(products)
	shape := ClassifyShape(stats.Avg, len(products), p)

	base := p.BaseUnitsHybrid
	switch shape {
	case model.ShapeDurable:
		base = p.BaseUnitsDurable
	case model.ShapeConsumable:
		base = p.BaseUnitsConsumable
	}

	units := base * priceScale(stats.Avg, p) * float64(len(products))

	totals := model.MarketTotals{
		Units:    int(math.Round(units)),
		Revenue:  math.Round(units*stats.Avg*100) / 100,
		Shape:    shape,
		Category: category,
		PriceMin: stats.Min,
		PriceAvg: stats.Avg,
		PriceMax: stats.Max,
	}

	zap.L().Debug("estimate: rough totals",
		zap.Int("listings", len(products)),
		zap.String("shape", shape),
		zap.Int("units", totals.Units),
		zap.Float64("revenue", totals.Revenue),
		zap.String("policy", p.describe()),
	)

	return totals
}

// Calibrate corrects the rough estimate toward the trusted band using the
// observed price-band width, review dispersion, listing count and sponsored
// density. The combined factor is clamped so a single odd page cannot swing
// the target arbitrarily.
func Calibrate(totals model.MarketTotals, products []model.CanonicalProduct, p Policy) model.MarketTotals {
	if len(products) == 0 || totals.Units == 0 {
		return totals
	}

	factor := p.TrustedBand
	factor *= bandWidthFactor(totals, p)
	factor *= reviewDispersionFactor(products, p)
	factor *= listingCountFactor(len(products), p)
	factor *= sponsoredDensityFactor(products, p)
	factor = Clamp(factor, p.CalibrationFactorMin, p.CalibrationFactorMax)

	out := totals
	out.Units = int(math.Round(float64(totals.Units) * factor))
	out.Revenue = math.Round(totals.Revenue*factor*100) / 100

	zap.L().Debug("estimate: calibrated totals",
		zap.Float64("factor", factor),
		zap.Int("units_before", totals.Units),
		zap.Int("units_after", out.Units),
	)

	return out
}

// bandWidthFactor dampens the estimate when the price band is very wide:
// scattered price points mean the page mixes segments and the per-listing
// base overstates any one of them.
func bandWidthFactor(t model.MarketTotals, p Policy) float64 {
	if t.PriceAvg <= 0 {
		return 1.0
	}
	width := (t.PriceMax - t.PriceMin) / t.PriceAvg
	switch {
	case width > p.BandWidthWide:
		return p.BandWidthWideFactor
	case width > p.BandWidthMedium:
		return p.BandWidthMediumFactor
	default:
		return 1.0
	}
}

// reviewDispersionFactor rewards pages whose review counts are concentrated:
// an established market with uniformly reviewed listings sells closer to
// the base rate than a page dominated by one outlier.
func reviewDispersionFactor(products []model.CanonicalProduct, p Policy) float64 {
	var sum float64
	n := 0
	for _, prod := range products {
		if prod.ReviewCount > 0 {
			sum += float64(prod.ReviewCount)
			n++
		}
	}
	if n < 2 {
		return 1.0
	}
	mean := sum / float64(n)
	var variance float64
	for _, prod := range products {
		if prod.ReviewCount > 0 {
			d := float64(prod.ReviewCount) - mean
			variance += d * d
		}
	}
	cv := math.Sqrt(variance/float64(n)) / mean
	switch {
	case cv > p.DispersionHighCV:
		return p.DispersionHighFactor
	case cv > p.DispersionMediumCV:
		return p.DispersionMediumFactor
	default:
		return p.DispersionLowFactor
	}
}

// listingCountFactor nudges sparse pages down: a page that cannot fill its
// organic slots signals thin demand.
func listingCountFactor(count int, p Policy) float64 {
	switch {
	case count < p.SparsePageCount:
		return p.SparsePageFactor
	case count < p.ThinPageCount:
		return p.ThinPageFactor
	default:
		return 1.0
	}
}

// sponsoredDensityFactor scales with paid competition: heavy sponsorship is
// a strong signal of commercial volume.
func sponsoredDensityFactor(products []model.CanonicalProduct, p Policy) float64 {
	if len(products) == 0 {
		return 1.0
	}
	sponsored := 0
	for _, prod := range products {
		if prod.AppearsSponsored {
			sponsored++
		}
	}
	density := float64(sponsored) / float64(len(products))
	switch {
	case density > p.DensityHigh:
		return p.DensityHighFactor
	case density > p.DensityMedium:
		return p.DensityMediumFactor
	default:
		return 1.0
	}
}

// MedianReviews returns the median positive review count, 0 when none exist.
func MedianReviews(products []model.CanonicalProduct) float64 {
	var counts []float64
	for _, p := range products {
		if p.ReviewCount > 0 {
			counts = append(counts, float64(p.ReviewCount))
		}
	}
	return median(counts)
}

// MedianRating returns the median positive rating, 0 when none exist.
func MedianRating(products []model.CanonicalProduct) float64 {
	var ratings []float64
	for _, p := range products {
		if p.Rating > 0 {
			ratings = append(ratings, p.Rating)
		}
	}
	return median(ratings)
}

// MedianPrice returns the median positive price, 0 when none exist.
func MedianPrice(products []model.CanonicalProduct) float64 {
	var prices []float64
	for _, p := range products {
		if p.Price > 0 {
			prices = append(prices, p.Price)
		}
	}
	return median(prices)
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// NormalizeShape lowercases and trims a shape tag for comparisons.
func NormalizeShape(shape string) string {
	return strings.ToLower(strings.TrimSpace(shape))
}
