// Package model defines the core data types shared across the demand engine.
package model

import "regexp"

// asinPattern matches a well-formed marketplace product identifier:
// ten uppercase alphanumeric characters.
var asinPattern = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// Listing is a single raw search hit as delivered by the search provider.
// One page typically carries up to ~60 hits including sponsored slots, and
// the same ASIN may appear in several of them.
type Listing struct {
	ASIN        string  `json:"asin"`
	Position    int     `json:"position"` // 1-based slot on the page, organic + sponsored interleaved
	Sponsored   bool    `json:"sponsored"`
	Title       string  `json:"title,omitempty"`
	Brand       string  `json:"brand,omitempty"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`       // 0-5, 0 means unknown
	ReviewCount int     `json:"review_count"`
	Category    string  `json:"category,omitempty"`
	ParentASIN  string  `json:"parent_asin,omitempty"` // variant-group key, empty for standalone
	Fulfillment string  `json:"fulfillment,omitempty"` // FBA, FBM, AMZ
	BSR         *int    `json:"bsr,omitempty"`         // best sellers rank in the leaf category
}

// ValidASIN reports whether the listing carries a well-formed identifier.
// Listings failing this check are silently dropped during normalization.
func (l Listing) ValidASIN() bool {
	return asinPattern.MatchString(l.ASIN)
}

// SearchVolumeBounds is an optional externally supplied range for the
// keyword's monthly search volume.
type SearchVolumeBounds struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Mean returns the midpoint of the bounds, or 0 for a nil receiver.
func (b *SearchVolumeBounds) Mean() float64 {
	if b == nil {
		return 0
	}
	return float64(b.Low+b.High) / 2
}
