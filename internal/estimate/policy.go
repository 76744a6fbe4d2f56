// Package estimate produces the page-wide demand target: a rough estimate
// from price distribution and market shape, then a calibration pass toward
// externally tuned bands.
package estimate

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Policy holds every tuned constant the engine uses. The defaults are
// empirical fits against a third-party benchmark, not derivable from first
// principles; tune them here, never inline in algorithm code.
type Policy struct {
	// Market-shape classification.
	DurablePriceThreshold     float64 `yaml:"durable_price_threshold"`
	ConsumablePriceThreshold  float64 `yaml:"consumable_price_threshold"`
	ConsumableVolumeThreshold float64 `yaml:"consumable_volume_threshold"`

	// Base monthly units per listing by shape, before price scaling.
	BaseUnitsDurable    float64 `yaml:"base_units_durable"`
	BaseUnitsHybrid     float64 `yaml:"base_units_hybrid"`
	BaseUnitsConsumable float64 `yaml:"base_units_consumable"`

	// Price scaling of the base: cheaper pages scale up, pricier down.
	PriceScaleReference float64 `yaml:"price_scale_reference"`
	PriceScaleMin       float64 `yaml:"price_scale_min"`
	PriceScaleMax       float64 `yaml:"price_scale_max"`

	// Calibration toward the externally tuned trusted band.
	TrustedBand          float64 `yaml:"trusted_band"`
	CalibrationFactorMin float64 `yaml:"calibration_factor_min"`
	CalibrationFactorMax float64 `yaml:"calibration_factor_max"`

	// Calibration heuristic breakpoints and their factors.
	BandWidthWide          float64 `yaml:"band_width_wide"`
	BandWidthMedium        float64 `yaml:"band_width_medium"`
	BandWidthWideFactor    float64 `yaml:"band_width_wide_factor"`
	BandWidthMediumFactor  float64 `yaml:"band_width_medium_factor"`
	DispersionHighCV       float64 `yaml:"dispersion_high_cv"`
	DispersionMediumCV     float64 `yaml:"dispersion_medium_cv"`
	DispersionHighFactor   float64 `yaml:"dispersion_high_factor"`
	DispersionMediumFactor float64 `yaml:"dispersion_medium_factor"`
	DispersionLowFactor    float64 `yaml:"dispersion_low_factor"`
	SparsePageCount        int     `yaml:"sparse_page_count"`
	ThinPageCount          int     `yaml:"thin_page_count"`
	SparsePageFactor       float64 `yaml:"sparse_page_factor"`
	ThinPageFactor         float64 `yaml:"thin_page_factor"`
	DensityHigh            float64 `yaml:"density_high"`
	DensityMedium          float64 `yaml:"density_medium"`
	DensityHighFactor      float64 `yaml:"density_high_factor"`
	DensityMediumFactor    float64 `yaml:"density_medium_factor"`

	// Profile multiplier clamp.
	MultiplierMin float64 `yaml:"multiplier_min"`
	MultiplierMax float64 `yaml:"multiplier_max"`

	// Raw per-listing weights.
	RankWeightExponent float64 `yaml:"rank_weight_exponent"`
	ReviewWeightMin    float64 `yaml:"review_weight_min"`
	ReviewWeightMax    float64 `yaml:"review_weight_max"`
	RatingPenaltyFloor float64 `yaml:"rating_penalty_floor"`
	RatingPenaltySlope float64 `yaml:"rating_penalty_slope"`
	PriceWeightFloor   float64 `yaml:"price_weight_floor"`
	PriceWeightSlope   float64 `yaml:"price_weight_slope"`

	// Phase 1: anchor ranks.
	AnchorCount           int     `yaml:"anchor_count"`
	AnchorShare           float64 `yaml:"anchor_share"`
	AnchorDecay           float64 `yaml:"anchor_decay"`
	AnchorMinUnitsCheap   int     `yaml:"anchor_min_units_cheap"` // when price < median
	AnchorMinUnits        int     `yaml:"anchor_min_units"`
	AnchorSearchVolumeCap float64 `yaml:"anchor_search_volume_cap"`
	SearchVolumeFallback  float64 `yaml:"search_volume_fallback"` // x total units when bounds absent

	// Phase 2: tail and sponsored pool.
	TailRatingFallback float64 `yaml:"tail_rating_fallback"`
	TailFloorFrac      float64 `yaml:"tail_floor_frac"`
	SponsoredPoolShare float64 `yaml:"sponsored_pool_share"`

	// Phase 3: conservation.
	ConservationTolerance float64 `yaml:"conservation_tolerance"`

	// Guardrails.
	ReviewFloorThreshold int     `yaml:"review_floor_threshold"`
	ReviewFloorUnits     int     `yaml:"review_floor_units"`
	DeepRankThreshold    int     `yaml:"deep_rank_threshold"`
	DeepRankFloorFrac    float64 `yaml:"deep_rank_floor_frac"`
	DeepRankFloorMin     int     `yaml:"deep_rank_floor_min"`

	// Page-level scaling stages, in order.
	ExpansionRankOneTarget float64 `yaml:"expansion_rank_one_target"`
	ExpansionPageTarget    float64 `yaml:"expansion_page_target"`
	ExpansionMax           float64 `yaml:"expansion_max"`
	AbsorptionRankOneCap   float64 `yaml:"absorption_rank_one_cap"`
	AbsorptionTopThreeCap  float64 `yaml:"absorption_top_three_cap"`
	AbsorptionSpreadFrom   int     `yaml:"absorption_spread_from"`
	AbsorptionSpreadTo     int     `yaml:"absorption_spread_to"`
	TailRelaxDecay         float64 `yaml:"tail_relax_decay"`
	AlignmentMultiplier    float64 `yaml:"alignment_multiplier"`
	BSRCutoff              int     `yaml:"bsr_cutoff"`
	BSRDecayScale          float64 `yaml:"bsr_decay_scale"`
	UnitCap                int     `yaml:"unit_cap"`

	// Historical blending.
	HistoryWeight float64 `yaml:"history_weight"`
}

// DefaultPolicy returns the benchmark-fitted defaults.
func DefaultPolicy() Policy {
	return Policy{
		DurablePriceThreshold:     300,
		ConsumablePriceThreshold:  30,
		ConsumableVolumeThreshold: 80_000,

		BaseUnitsDurable:    120,
		BaseUnitsHybrid:     450,
		BaseUnitsConsumable: 1_800,

		PriceScaleReference: 75,
		PriceScaleMin:       0.4,
		PriceScaleMax:       3.0,

		TrustedBand:          1.0,
		CalibrationFactorMin: 0.35,
		CalibrationFactorMax: 2.8,

		BandWidthWide:          2.5,
		BandWidthMedium:        1.5,
		BandWidthWideFactor:    0.8,
		BandWidthMediumFactor:  0.9,
		DispersionHighCV:       3.0,
		DispersionMediumCV:     1.5,
		DispersionHighFactor:   0.85,
		DispersionMediumFactor: 0.95,
		DispersionLowFactor:    1.05,
		SparsePageCount:        10,
		ThinPageCount:          25,
		SparsePageFactor:       0.8,
		ThinPageFactor:         0.9,
		DensityHigh:            0.4,
		DensityMedium:          0.2,
		DensityHighFactor:      1.15,
		DensityMediumFactor:    1.05,

		MultiplierMin: 0.1,
		MultiplierMax: 10.0,

		RankWeightExponent: 0.7,
		ReviewWeightMin:    0.5,
		ReviewWeightMax:    2.0,
		RatingPenaltyFloor: 0.3,
		RatingPenaltySlope: 0.5,
		PriceWeightFloor:   0.8,
		PriceWeightSlope:   0.2,

		AnchorCount:           5,
		AnchorShare:           0.6,
		AnchorDecay:           0.45,
		AnchorMinUnitsCheap:   50,
		AnchorMinUnits:        25,
		AnchorSearchVolumeCap: 0.35,
		SearchVolumeFallback:  10,

		TailRatingFallback: 0.85,
		TailFloorFrac:      0.15,
		SponsoredPoolShare: 0.15,

		ConservationTolerance: 0.03,

		ReviewFloorThreshold: 20,
		ReviewFloorUnits:     5,
		DeepRankThreshold:    15,
		DeepRankFloorFrac:    0.5,
		DeepRankFloorMin:     2,

		ExpansionRankOneTarget: 100_000,
		ExpansionPageTarget:    200_000,
		ExpansionMax:           50,
		AbsorptionRankOneCap:   0.11,
		AbsorptionTopThreeCap:  0.425,
		AbsorptionSpreadFrom:   4,
		AbsorptionSpreadTo:     15,
		TailRelaxDecay:         0.2,
		AlignmentMultiplier:    0.85,
		BSRCutoff:              300,
		BSRDecayScale:          120,
		UnitCap:                4_000,

		HistoryWeight: 0.3,
	}
}

// Validate checks that a Policy is internally consistent.
func Validate(p Policy) error {
	var errs []string

	if p.DurablePriceThreshold <= p.ConsumablePriceThreshold {
		errs = append(errs, "durable_price_threshold must exceed consumable_price_threshold")
	}
	if p.BaseUnitsDurable <= 0 || p.BaseUnitsHybrid <= 0 || p.BaseUnitsConsumable <= 0 {
		errs = append(errs, "base units must be > 0")
	}
	if p.BaseUnitsConsumable < p.BaseUnitsHybrid || p.BaseUnitsHybrid < p.BaseUnitsDurable {
		errs = append(errs, "base units must be ordered durable <= hybrid <= consumable")
	}
	if p.PriceScaleMin <= 0 || p.PriceScaleMax < p.PriceScaleMin {
		errs = append(errs, "price scale bounds must satisfy 0 < min <= max")
	}
	if p.MultiplierMin <= 0 || p.MultiplierMax < p.MultiplierMin {
		errs = append(errs, "multiplier bounds must satisfy 0 < min <= max")
	}
	if p.BandWidthMedium <= 0 || p.BandWidthWide <= p.BandWidthMedium {
		errs = append(errs, "band width breakpoints must be ascending and > 0")
	}
	if p.DispersionMediumCV <= 0 || p.DispersionHighCV <= p.DispersionMediumCV {
		errs = append(errs, "dispersion cv breakpoints must be ascending and > 0")
	}
	if p.SparsePageCount <= 0 || p.ThinPageCount <= p.SparsePageCount {
		errs = append(errs, "page count breakpoints must be ascending and > 0")
	}
	if p.DensityMedium <= 0 || p.DensityHigh <= p.DensityMedium {
		errs = append(errs, "sponsored density breakpoints must be ascending and > 0")
	}
	if p.AnchorCount <= 0 {
		errs = append(errs, "anchor_count must be > 0")
	}
	if p.AnchorShare <= 0 || p.AnchorShare >= 1 {
		errs = append(errs, "anchor_share must be in (0, 1)")
	}
	if p.AnchorDecay <= 0 {
		errs = append(errs, "anchor_decay must be > 0")
	}
	if p.TailFloorFrac < 0 || p.TailFloorFrac > 1 {
		errs = append(errs, "tail_floor_frac must be in [0, 1]")
	}
	if p.SponsoredPoolShare < 0 || p.SponsoredPoolShare > 1 {
		errs = append(errs, "sponsored_pool_share must be in [0, 1]")
	}
	if p.ConservationTolerance <= 0 {
		errs = append(errs, "conservation_tolerance must be > 0")
	}
	if p.AbsorptionRankOneCap <= 0 || p.AbsorptionTopThreeCap < p.AbsorptionRankOneCap {
		errs = append(errs, "absorption caps must satisfy 0 < rank_one <= top_three")
	}
	if p.AbsorptionSpreadFrom >= p.AbsorptionSpreadTo {
		errs = append(errs, "absorption spread range must be ascending")
	}
	if p.ExpansionMax < 1 {
		errs = append(errs, "expansion_max must be >= 1")
	}
	if p.AlignmentMultiplier <= 0 {
		errs = append(errs, "alignment_multiplier must be > 0")
	}
	if p.BSRCutoff <= 0 || p.BSRDecayScale <= 0 {
		errs = append(errs, "bsr cutoff and decay scale must be > 0")
	}
	if p.UnitCap <= 0 {
		errs = append(errs, "unit_cap must be > 0")
	}
	if p.HistoryWeight < 0 || p.HistoryWeight >= 1 {
		errs = append(errs, "history_weight must be in [0, 1)")
	}

	if len(errs) > 0 {
		return eris.Errorf("estimate: policy validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadPolicy reads policy overrides from a YAML file layered on the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrapf(err, "estimate: read policy %s", path)
	}

	// The YAML has a top-level "policy" key.
	wrapper := struct {
		Policy *Policy `yaml:"policy"`
	}{Policy: &p}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return p, eris.Wrap(err, "estimate: parse policy")
	}

	if err := Validate(p); err != nil {
		return p, err
	}
	return p, nil
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// describe is used in log fields where a one-line summary is enough.
func (p Policy) describe() string {
	return fmt.Sprintf("band=%.2f align=%.2f anchors=%d", p.TrustedBand, p.AlignmentMultiplier, p.AnchorCount)
}
