package estimate

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/model"
)

// ApplyProfile applies a calibration profile's multipliers uniformly to every
// product and returns the adjusted copy plus multiplier metadata. Multipliers
// are clamped to the policy bounds before use. Per-listing shares are
// conserved: after scaling, integer rounding drift is folded back into the
// largest listing so the page totals move by exactly the clamped multipliers.
//
// inferredCategory comes from the original listings' hints; when the profile
// names a different category the multipliers still apply but the reported
// confidence drops to low, since the profile was tuned on a different market.
func ApplyProfile(
	products []model.CanonicalProduct,
	profile *model.CalibrationProfile,
	inferredCategory string,
	p Policy,
) ([]model.CanonicalProduct, model.Multiplier) {
	keyword := ""
	if profile != nil {
		keyword = profile.Keyword
	}
	if profile == nil {
		return products, model.IdentityMultiplier(keyword)
	}

	um := Clamp(profile.UnitsMultiplier, p.MultiplierMin, p.MultiplierMax)
	rm := Clamp(profile.RevenueMultiplier, p.MultiplierMin, p.MultiplierMax)

	meta := model.Multiplier{
		Keyword:           profile.Keyword,
		UnitsMultiplier:   um,
		RevenueMultiplier: rm,
		Confidence:        profile.Confidence,
		Source:            model.CalibrationSourceProfile,
	}
	if meta.Confidence == "" {
		meta.Confidence = model.ConfidenceMedium
	}
	if profile.Category != "" && inferredCategory != "" &&
		!strings.EqualFold(profile.Category, inferredCategory) {
		meta.Confidence = model.ConfidenceLow
		meta.Source = model.CalibrationSourceMismatch
		zap.L().Warn("estimate: profile category mismatch",
			zap.String("keyword", profile.Keyword),
			zap.String("profile_category", profile.Category),
			zap.String("inferred_category", inferredCategory),
		)
	}

	out := make([]model.CanonicalProduct, len(products))
	copy(out, products)

	var unitsBefore int
	for _, prod := range products {
		unitsBefore += prod.EstimatedMonthlyUnits
	}

	var unitsAfter int
	largest := -1
	for i := range out {
		out[i].EstimatedMonthlyUnits = int(math.Round(float64(out[i].EstimatedMonthlyUnits) * um))
		out[i].EstimatedMonthlyRevenue = math.Round(out[i].EstimatedMonthlyRevenue*rm*100) / 100
		unitsAfter += out[i].EstimatedMonthlyUnits
		if largest < 0 || out[i].EstimatedMonthlyUnits > out[largest].EstimatedMonthlyUnits {
			largest = i
		}
	}

	// Conserve the scaled total exactly despite per-listing rounding.
	target := int(math.Round(float64(unitsBefore) * um))
	if largest >= 0 && unitsAfter != target {
		drift := target - unitsAfter
		if out[largest].EstimatedMonthlyUnits+drift >= 0 {
			out[largest].EstimatedMonthlyUnits += drift
		}
	}

	RecomputeShares(out)

	zap.L().Info("estimate: profile applied",
		zap.String("keyword", profile.Keyword),
		zap.Float64("units_multiplier", um),
		zap.Float64("revenue_multiplier", rm),
		zap.String("confidence", meta.Confidence),
		zap.String("source", meta.Source),
	)

	return out, meta
}

// RecomputeShares refreshes every product's revenue share against the current
// page revenue total. Call it after any stage that changes totals. When total
// revenue is zero all shares are zero.
func RecomputeShares(products []model.CanonicalProduct) {
	var total float64
	for _, p := range products {
		total += p.EstimatedMonthlyRevenue
	}
	for i := range products {
		if total > 0 {
			products[i].RevenueSharePct = math.Round(products[i].EstimatedMonthlyRevenue/total*100*100) / 100
		} else {
			products[i].RevenueSharePct = 0
		}
	}
}
