// Package history blends trailing per-ASIN averages into fresh estimates.
// The store is an optional external collaborator; when absent the blend is a
// no-op.
package history

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

// ErrNotFound is returned by stores when no trailing average exists.
var ErrNotFound = eris.New("history: no average for asin")

// Average is a trailing per-ASIN estimate from previous snapshots.
type Average struct {
	ASIN    string  `json:"asin"`
	Units   float64 `json:"units"`
	Revenue float64 `json:"revenue"`
	Samples int     `json:"samples"`
}

// Store is the narrow capability the blender needs. Implementations return
// ErrNotFound when no average exists; any other error is treated the same
// way by Blend, which must never let history break an estimate.
type Store interface {
	Average(ctx context.Context, asin string) (*Average, error)
}

// Blend moves each product's fresh estimate toward its trailing average by
// the policy weight. A trailing average may only ever move an estimate, never
// null it: a product with units stays at one unit minimum, and missing or
// failing lookups leave the fresh value untouched.
func Blend(ctx context.Context, products []model.CanonicalProduct, store Store, p estimate.Policy) int {
	if store == nil || p.HistoryWeight <= 0 {
		return 0
	}

	blended := 0
	for i := range products {
		prod := &products[i]
		avg, err := store.Average(ctx, prod.ASIN)
		if err != nil {
			if !eris.Is(err, ErrNotFound) {
				zap.L().Warn("history: lookup failed, skipping",
					zap.String("asin", prod.ASIN),
					zap.Error(err),
				)
			}
			continue
		}
		if avg == nil || avg.Samples == 0 {
			continue
		}

		w := p.HistoryWeight
		units := int(math.Round(float64(prod.EstimatedMonthlyUnits)*(1-w) + avg.Units*w))
		if prod.EstimatedMonthlyUnits > 0 && units < 1 {
			units = 1
		}
		prod.EstimatedMonthlyUnits = units
		prod.EstimatedMonthlyRevenue = math.Round(float64(units)*prod.Price*100) / 100
		blended++
	}

	if blended > 0 {
		zap.L().Debug("history: blended trailing averages", zap.Int("products", blended))
	}
	return blended
}
