// Package engine wires the demand pipeline together: canonicalization, page
// cap, demand estimation, calibration, allocation, guardrails, scaling,
// variant normalization and validation. Each invocation is a pure function of
// its inputs; separate keywords can run concurrently with no shared state.
package engine

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/allocate"
	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/history"
	"github.com/shelfsight/demand-cli/internal/market"
	"github.com/shelfsight/demand-cli/internal/model"
	"github.com/shelfsight/demand-cli/internal/profile"
	"github.com/shelfsight/demand-cli/internal/validate"
	"github.com/shelfsight/demand-cli/internal/variant"
)

// profileLookupTimeout bounds the single external call the engine awaits.
// A slow profile store degrades to "no profile found", never a failure.
const profileLookupTimeout = 3 * time.Second

// PageEstimate is the engine's output for one keyword page: per-product
// allocations, the page totals they conserve, and per-stage telemetry.
type PageEstimate struct {
	Products []model.CanonicalProduct `json:"products"`
	Totals   model.MarketTotals       `json:"totals"`
	Stages   []StageEvent             `json:"stages,omitempty"`
}

// Engine runs the demand pipeline under a fixed policy. History is optional;
// a nil store disables trailing-average blending.
type Engine struct {
	policy  estimate.Policy
	history history.Store
}

// New creates an Engine. The policy is validated once here so stage code can
// trust it.
func New(policy estimate.Policy, hist history.Store) (*Engine, error) {
	if err := estimate.Validate(policy); err != nil {
		return nil, err
	}
	return &Engine{policy: policy, history: hist}, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() estimate.Policy {
	return e.policy
}

// BuildPage estimates per-listing demand for one keyword's first results
// page. It is synchronous, deterministic, and side-effect-free besides
// structured telemetry. An input whose listings all drop produces an empty
// page, not an error; the only error is the hard zero-unit invariant.
func (e *Engine) BuildPage(listings []model.Listing, bounds *model.SearchVolumeBounds) (*PageEstimate, error) {
	var events []StageEvent

	var products []model.CanonicalProduct
	var organicCount, sponsoredOnlyCount int
	track(&events, "canonicalize", func() map[string]any {
		canonical := market.Canonicalize(listings)
		organic, sponsoredOnly := market.EnforcePageCap(canonical)
		organicCount = len(organic)
		sponsoredOnlyCount = len(sponsoredOnly)
		products = append(organic, sponsoredOnly...)
		return map[string]any{
			"raw_listings":   len(listings),
			"canonical":      len(canonical),
			"organic":        organicCount,
			"sponsored_only": sponsoredOnlyCount,
		}
	})

	if len(products) == 0 {
		zap.L().Info("engine: empty page after canonicalization")
		return &PageEstimate{Products: []model.CanonicalProduct{}, Stages: events}, nil
	}

	category := market.MajorityCategory(listings)

	var totals model.MarketTotals
	track(&events, "estimate_totals", func() map[string]any {
		rough := estimate.EstimateTotals(products, category, e.policy)
		totals = estimate.Calibrate(rough, products, e.policy)
		return map[string]any{
			"shape":          totals.Shape,
			"rough_units":    rough.Units,
			"calibrated":     totals.Units,
			"price_avg":      math.Round(totals.PriceAvg*100) / 100,
			"category":       category,
		}
	})

	var stats allocate.RefineStats
	track(&events, "allocate", func() map[string]any {
		allocate.RawAllocate(products, totals, e.policy)
		stats = allocate.Refine(products, totals, bounds, e.policy)
		return map[string]any{
			"anchor_units":  stats.AnchorUnits,
			"tail_count":    stats.TailCount,
			"rescaled":      stats.Rescaled,
			"search_volume": stats.SearchVolume,
		}
	})

	track(&events, "guardrails", func() map[string]any {
		adjusted := allocate.ApplyGuardrails(products, stats, e.policy)
		return map[string]any{"adjusted": adjusted}
	})

	var changes []allocate.StageChange
	track(&events, "scale", func() map[string]any {
		totals, changes = allocate.Scale(products, totals, stats, e.policy)
		return map[string]any{"stages": changes}
	})

	if e.history != nil {
		track(&events, "history_blend", func() map[string]any {
			blended := history.Blend(context.Background(), products, e.history, e.policy)
			if blended > 0 {
				totals = Resum(products, totals)
			}
			return map[string]any{"blended": blended}
		})
	}

	track(&events, "variant_normalize", func() map[string]any {
		groups := variant.Normalize(products, e.policy)
		estimate.RecomputeShares(products)
		return map[string]any{"groups": groups}
	})

	var checkErr error
	track(&events, "validate", func() map[string]any {
		checkErr = validate.Check(products, totals, e.policy)
		return map[string]any{"ok": checkErr == nil}
	})
	if checkErr != nil {
		return nil, eris.Wrap(checkErr, "engine: build page")
	}

	zap.L().Info("engine: page built",
		zap.Int("products", len(products)),
		zap.Int("organic", organicCount),
		zap.Int("sponsored_only", sponsoredOnlyCount),
		zap.String("shape", totals.Shape),
		zap.Int("units", totals.Units),
		zap.Float64("revenue", totals.Revenue),
	)

	return &PageEstimate{Products: products, Totals: totals, Stages: events}, nil
}

// ApplyCalibration looks up a calibration profile for the keyword and applies
// its multipliers to the products. The lookup is the only asynchronous
// boundary: any failure or timeout is treated as "no profile found" and never
// propagated. The original listings supply the category hint used to flag
// profiles tuned on a different market.
func (e *Engine) ApplyCalibration(
	ctx context.Context,
	products []model.CanonicalProduct,
	keyword, category string,
	store profile.Store,
	listings []model.Listing,
) ([]model.CanonicalProduct, model.Multiplier) {
	normalized := profile.NormalizeKeyword(keyword)

	var found *model.CalibrationProfile
	if store != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, profileLookupTimeout)
		defer cancel()

		p, err := store.Lookup(lookupCtx, normalized)
		switch {
		case err == nil:
			found = p
		case eris.Is(err, profile.ErrNotFound):
			// expected: most keywords have no profile
		default:
			zap.L().Warn("engine: profile lookup failed, treating as absent",
				zap.String("keyword", normalized),
				zap.Error(err),
			)
		}
	}

	if found == nil {
		meta := model.IdentityMultiplier(normalized)
		return products, meta
	}

	inferred := category
	if inferred == "" {
		inferred = market.MajorityCategory(listings)
	}

	out, meta := estimate.ApplyProfile(products, found, inferred, e.policy)
	return out, meta
}

// Resum refreshes the reported totals from the current allocations. Callers
// that rescale products after BuildPage (calibration, history blending) must
// resum before persisting so totals keep matching the product sums.
func Resum(products []model.CanonicalProduct, totals model.MarketTotals) model.MarketTotals {
	units := 0
	var rev float64
	for i := range products {
		units += products[i].EstimatedMonthlyUnits
		rev += products[i].EstimatedMonthlyRevenue
	}
	totals.Units = units
	totals.Revenue = math.Round(rev*100) / 100
	return totals
}
