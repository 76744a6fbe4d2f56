package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/demand-cli/internal/model"
)

func listing(asin string, pos int, sponsored bool) model.Listing {
	return model.Listing{
		ASIN:        asin,
		Position:    pos,
		Sponsored:   sponsored,
		Title:       "Acme Widget Pro",
		Brand:       "Acme",
		Price:       19.99,
		Rating:      4.5,
		ReviewCount: 120,
		Category:    "widgets",
	}
}

func TestNormalizeAppearances_DropsMalformedASINs(t *testing.T) {
	listings := []model.Listing{
		listing("B0TESTASIN", 1, false),
		listing("short", 2, false),
		listing("b0lowercase", 3, false),
		listing("B0OTHERONE", 4, true),
	}

	apps := NormalizeAppearances(listings)
	require.Len(t, apps, 2)
	assert.Equal(t, "B0TESTASIN", apps[0].ASIN)
	assert.Equal(t, "B0OTHERONE", apps[1].ASIN)
	assert.True(t, apps[1].Sponsored)
}

func TestCanonicalize_MergesRepeatAppearances(t *testing.T) {
	// One ASIN shown sponsored at slot 1, organic at slot 2, sponsored again
	// at slots 5 and 9. Canonical record keeps the organic slot, aggregates
	// all sponsored placements, and counts every appearance.
	listings := []model.Listing{
		listing("B0AAAAAAAA", 5, true),
		listing("B0AAAAAAAA", 2, false),
		listing("B0AAAAAAAA", 9, true),
		listing("B0BBBBBBBB", 3, false),
	}

	products := Canonicalize(listings)
	require.Len(t, products, 2)

	p := products[0]
	assert.Equal(t, "B0AAAAAAAA", p.ASIN)
	require.NotNil(t, p.OrganicRank)
	assert.Equal(t, 2, *p.OrganicRank)
	assert.True(t, p.AppearsSponsored)
	assert.Equal(t, []int{5, 9}, p.SponsoredPositions)
	assert.Equal(t, 3, p.AppearanceCount)
	assert.True(t, p.AlgorithmBoosted)

	q := products[1]
	assert.Equal(t, "B0BBBBBBBB", q.ASIN)
	assert.False(t, q.AppearsSponsored)
	assert.False(t, q.AlgorithmBoosted)
	assert.Equal(t, 1, q.AppearanceCount)
}

func TestCanonicalize_SponsoredOnlyHasNoOrganicRank(t *testing.T) {
	listings := []model.Listing{
		listing("B0SPONSORD", 1, true),
		listing("B0SPONSORD", 7, true),
	}

	products := Canonicalize(listings)
	require.Len(t, products, 1)
	assert.Nil(t, products[0].OrganicRank)
	assert.True(t, products[0].AppearsSponsored)
	assert.Equal(t, []int{1, 7}, products[0].SponsoredPositions)
}

func TestCanonicalize_DeterministicOrder(t *testing.T) {
	// Same page in two arrival orders must canonicalize identically.
	a := []model.Listing{
		listing("B0AAAAAAAA", 2, false),
		listing("B0BBBBBBBB", 1, false),
		listing("B0AAAAAAAA", 6, true),
	}
	b := []model.Listing{
		listing("B0AAAAAAAA", 6, true),
		listing("B0BBBBBBBB", 1, false),
		listing("B0AAAAAAAA", 2, false),
	}

	assert.Equal(t, Canonicalize(a), Canonicalize(b))
}

func TestCanonicalize_RepresentativeListingSuppliesSignals(t *testing.T) {
	organic := listing("B0AAAAAAAA", 3, false)
	organic.Price = 25.00
	organic.ReviewCount = 500
	sponsored := listing("B0AAAAAAAA", 1, true)
	sponsored.Price = 99.99
	sponsored.ReviewCount = 1

	products := Canonicalize([]model.Listing{sponsored, organic})
	require.Len(t, products, 1)

	// Signals come from the best organic slot's listing, not the sponsored one.
	assert.Equal(t, 25.00, products[0].Price)
	assert.Equal(t, 500, products[0].ReviewCount)
	assert.Equal(t, 1, products[0].PagePosition)
}

func TestResolveBrand_Tiers(t *testing.T) {
	explicit := model.Listing{Brand: "Acme", Title: "Other Widget"}
	brand, source := resolveBrand(explicit)
	assert.Equal(t, "Acme", brand)
	assert.Equal(t, model.BrandConfidenceHigh, source)

	titleOnly := model.Listing{Title: "Zenith Deluxe Widget"}
	brand, source = resolveBrand(titleOnly)
	assert.Equal(t, "Zenith", brand)
	assert.Equal(t, model.BrandConfidenceMedium, source)

	empty := model.Listing{}
	brand, source = resolveBrand(empty)
	assert.Equal(t, "", brand)
	assert.Equal(t, model.BrandConfidenceNone, source)
}

func TestMajorityCategory(t *testing.T) {
	listings := []model.Listing{
		{Category: "kitchen"},
		{Category: "kitchen"},
		{Category: "grocery"},
		{Category: ""},
	}
	assert.Equal(t, "kitchen", MajorityCategory(listings))

	// Ties break to the lowest name.
	tied := []model.Listing{{Category: "b"}, {Category: "a"}}
	assert.Equal(t, "a", MajorityCategory(tied))

	assert.Equal(t, "", MajorityCategory(nil))
}
