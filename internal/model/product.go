package model

// Brand confidence tiers, strongest first.
const (
	BrandConfidenceHigh   = "high"   // explicit brand field on the listing
	BrandConfidenceMedium = "medium" // inferred from the title prefix
	BrandConfidenceNone   = "none"
)

// Market shapes. The shape selects baseline demand parameters: durable goods
// turn over slowest, consumables fastest.
const (
	ShapeDurable    = "durable"
	ShapeHybrid     = "hybrid"
	ShapeConsumable = "consumable"
)

// CanonicalProduct is the single deduplicated representation of an ASIN that
// appeared one or more times on a results page, together with its allocated
// share of the page's estimated demand.
type CanonicalProduct struct {
	ASIN string `json:"asin"`

	// Placement. OrganicRank is dense 1..N among organic results only and
	// nil when the ASIN never appeared organically. PagePosition is the
	// best raw slot across all appearances.
	OrganicRank        *int  `json:"organic_rank,omitempty"`
	PagePosition       int   `json:"page_position"`
	AppearsSponsored   bool  `json:"appears_sponsored"`
	SponsoredPositions []int `json:"sponsored_positions,omitempty"`
	AppearanceCount    int   `json:"appearance_count"`
	AlgorithmBoosted   bool  `json:"algorithm_boosted"`

	// Surface signals from the representative listing.
	Title       string  `json:"title,omitempty"`
	Brand       string  `json:"brand,omitempty"`
	BrandSource string  `json:"brand_source"` // high, medium, none
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	Category    string  `json:"category,omitempty"`
	ParentASIN  string  `json:"parent_asin,omitempty"`
	Fulfillment string  `json:"fulfillment"`
	BSR         *int    `json:"bsr,omitempty"`

	// Allocated demand.
	EstimatedMonthlyUnits   int     `json:"estimated_monthly_units"`
	EstimatedMonthlyRevenue float64 `json:"estimated_monthly_revenue"`
	RevenueSharePct         float64 `json:"revenue_share_pct"`
}

// Organic reports whether the product holds an organic rank.
func (p *CanonicalProduct) Organic() bool {
	return p.OrganicRank != nil
}

// EffectiveRank is the organic rank when present, otherwise the page position.
func (p *CanonicalProduct) EffectiveRank() int {
	if p.OrganicRank != nil {
		return *p.OrganicRank
	}
	return p.PagePosition
}

// MarketTotals is the calibrated page-wide demand target that per-listing
// allocations must conserve.
type MarketTotals struct {
	Units    int     `json:"units"`
	Revenue  float64 `json:"revenue"`
	Shape    string  `json:"shape"`
	Category string  `json:"category,omitempty"`

	PriceMin float64 `json:"price_min"`
	PriceAvg float64 `json:"price_avg"`
	PriceMax float64 `json:"price_max"`
}
