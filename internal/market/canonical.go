// Package market turns raw per-slot search hits into canonical per-ASIN
// records: dedup of repeat appearances, organic ranking, and the page cap.
package market

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/shelfsight/demand-cli/internal/model"
)

// Appearance is a single placement of an ASIN on the page. Many appearances
// may share one ASIN; the canonicalizer folds them back together.
type Appearance struct {
	ASIN      string
	Slot      int
	Sponsored bool
}

// NormalizeAppearances derives one Appearance per well-formed listing and
// silently drops listings with malformed identifiers.
func NormalizeAppearances(listings []model.Listing) []Appearance {
	apps := make([]Appearance, 0, len(listings))
	dropped := 0
	for _, l := range listings {
		if !l.ValidASIN() {
			dropped++
			continue
		}
		apps = append(apps, Appearance{ASIN: l.ASIN, Slot: l.Position, Sponsored: l.Sponsored})
	}
	if dropped > 0 {
		zap.L().Debug("market: dropped malformed listings",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(apps)),
		)
	}
	return apps
}

// Canonicalize merges repeat appearances of each ASIN into a single canonical
// record. The organic slot is the lowest slot among non-sponsored appearances;
// sponsored placement is aggregated at the ASIN level (every sponsored slot is
// recorded, and AppearsSponsored is true if any appearance was sponsored).
// One representative listing, the one occupying the best slot, supplies price,
// rating and the other surface signals so that repeated runs over identical
// input produce identical output regardless of arrival order.
func Canonicalize(listings []model.Listing) []model.CanonicalProduct {
	byASIN := make(map[string][]model.Listing)
	var order []string
	for _, l := range listings {
		if !l.ValidASIN() {
			continue
		}
		if _, seen := byASIN[l.ASIN]; !seen {
			order = append(order, l.ASIN)
		}
		byASIN[l.ASIN] = append(byASIN[l.ASIN], l)
	}

	products := make([]model.CanonicalProduct, 0, len(byASIN))
	for _, asin := range order {
		group := byASIN[asin]

		var organicSlot *int
		pagePosition := group[0].Position
		var sponsoredSlots []int

		for _, l := range group {
			if l.Position < pagePosition {
				pagePosition = l.Position
			}
			if l.Sponsored {
				sponsoredSlots = append(sponsoredSlots, l.Position)
				continue
			}
			if organicSlot == nil || l.Position < *organicSlot {
				slot := l.Position
				organicSlot = &slot
			}
		}
		sort.Ints(sponsoredSlots)

		rep := representative(group, organicSlot, pagePosition)
		brand, brandSource := resolveBrand(rep)

		p := model.CanonicalProduct{
			ASIN:               asin,
			OrganicRank:        organicSlot, // raw slot; densified by EnforcePageCap
			PagePosition:       pagePosition,
			AppearsSponsored:   len(sponsoredSlots) > 0,
			SponsoredPositions: sponsoredSlots,
			AppearanceCount:    len(group),
			AlgorithmBoosted:   len(group) >= 2,
			Title:              rep.Title,
			Brand:              brand,
			BrandSource:        brandSource,
			Price:              rep.Price,
			Rating:             rep.Rating,
			ReviewCount:        rep.ReviewCount,
			Category:           rep.Category,
			ParentASIN:         rep.ParentASIN,
			Fulfillment:        fulfillment(rep),
			BSR:                rep.BSR,
		}
		products = append(products, p)
	}

	// Stable output order: best slot ascending, ASIN breaks ties.
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].PagePosition != products[j].PagePosition {
			return products[i].PagePosition < products[j].PagePosition
		}
		return products[i].ASIN < products[j].ASIN
	})

	return products
}

// representative picks the listing occupying the chosen best slot: the best
// organic slot when one exists, otherwise the best page position. Ties go to
// the lowest slot, never arrival order.
func representative(group []model.Listing, organicSlot *int, pagePosition int) model.Listing {
	target := pagePosition
	wantOrganic := false
	if organicSlot != nil {
		target = *organicSlot
		wantOrganic = true
	}
	best := group[0]
	found := false
	for _, l := range group {
		if l.Position != target {
			continue
		}
		if wantOrganic && l.Sponsored {
			continue
		}
		if !found || l.Position < best.Position {
			best = l
			found = true
		}
	}
	if found {
		return best
	}
	return group[0]
}

func fulfillment(l model.Listing) string {
	switch strings.ToUpper(l.Fulfillment) {
	case "FBA", "FBM", "AMZ":
		return strings.ToUpper(l.Fulfillment)
	default:
		return "unknown"
	}
}

// resolveBrand returns the brand string with a confidence tier: an explicit
// brand field is trusted, a title prefix is a weaker guess.
func resolveBrand(l model.Listing) (string, string) {
	if b := strings.TrimSpace(l.Brand); b != "" {
		return b, model.BrandConfidenceHigh
	}
	if fields := strings.Fields(l.Title); len(fields) > 0 {
		return fields[0], model.BrandConfidenceMedium
	}
	return "", model.BrandConfidenceNone
}

// MajorityCategory returns the most common non-empty category hint across
// the given listings, lowest name winning ties.
func MajorityCategory(listings []model.Listing) string {
	counts := make(map[string]int)
	for _, l := range listings {
		if c := strings.TrimSpace(l.Category); c != "" {
			counts[c]++
		}
	}
	var winner string
	var best int
	for c, n := range counts {
		if n > best || (n == best && (winner == "" || c < winner)) {
			winner = c
			best = n
		}
	}
	return winner
}
