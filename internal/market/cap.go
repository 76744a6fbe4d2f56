package market

import (
	"sort"

	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/model"
)

// PageSize is the marketplace's fixed number of organic results on the first
// page. Sponsored appearances never expand it.
const PageSize = 49

// EnforcePageCap splits canonical products into the capped organic set and
// the sponsored-only remainder. Products with at least one organic appearance
// are ordered by their best organic slot and the first PageSize of them are
// assigned dense organic ranks 1..N; organic products past the cap are dropped
// from the page entirely. Sponsored-only products (no organic appearance at
// all, by the ASIN-level aggregate) stay unranked and never backfill the cap.
func EnforcePageCap(products []model.CanonicalProduct) (organic, sponsoredOnly []model.CanonicalProduct) {
	for _, p := range products {
		if p.OrganicRank != nil {
			organic = append(organic, p)
		} else {
			sponsoredOnly = append(sponsoredOnly, p)
		}
	}

	sort.SliceStable(organic, func(i, j int) bool {
		if *organic[i].OrganicRank != *organic[j].OrganicRank {
			return *organic[i].OrganicRank < *organic[j].OrganicRank
		}
		return organic[i].ASIN < organic[j].ASIN
	})

	truncated := 0
	if len(organic) > PageSize {
		truncated = len(organic) - PageSize
		organic = organic[:PageSize]
	}

	// Re-rank densely: raw slots have gaps where sponsored placements sat.
	for i := range organic {
		rank := i + 1
		organic[i].OrganicRank = &rank
	}

	zap.L().Debug("market: page cap enforced",
		zap.Int("organic", len(organic)),
		zap.Int("sponsored_only", len(sponsoredOnly)),
		zap.Int("truncated", truncated),
	)

	return organic, sponsoredOnly
}
