package history

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/shelfsight/demand-cli/internal/estimate"
	"github.com/shelfsight/demand-cli/internal/model"
)

type fakeStore struct {
	averages map[string]*Average
	err      error
}

func (f *fakeStore) Average(_ context.Context, asin string) (*Average, error) {
	if f.err != nil {
		return nil, f.err
	}
	avg, ok := f.averages[asin]
	if !ok {
		return nil, ErrNotFound
	}
	return avg, nil
}

func freshProduct(asin string, units int, price float64) model.CanonicalProduct {
	return model.CanonicalProduct{
		ASIN:                    asin,
		Price:                   price,
		EstimatedMonthlyUnits:   units,
		EstimatedMonthlyRevenue: float64(units) * price,
	}
}

func TestBlend_MovesTowardAverage(t *testing.T) {
	p := estimate.DefaultPolicy()
	store := &fakeStore{averages: map[string]*Average{
		"B0AAAAAAAA": {ASIN: "B0AAAAAAAA", Units: 200, Revenue: 4000, Samples: 4},
	}}
	products := []model.CanonicalProduct{freshProduct("B0AAAAAAAA", 100, 20)}

	blended := Blend(context.Background(), products, store, p)
	assert.Equal(t, 1, blended)
	// 100 * 0.7 + 200 * 0.3 = 130
	assert.Equal(t, 130, products[0].EstimatedMonthlyUnits)
	assert.Equal(t, 2600.0, products[0].EstimatedMonthlyRevenue)
}

func TestBlend_NilStoreIsNoop(t *testing.T) {
	products := []model.CanonicalProduct{freshProduct("B0AAAAAAAA", 100, 20)}
	assert.Zero(t, Blend(context.Background(), products, nil, estimate.DefaultPolicy()))
	assert.Equal(t, 100, products[0].EstimatedMonthlyUnits)
}

func TestBlend_ZeroWeightIsNoop(t *testing.T) {
	p := estimate.DefaultPolicy()
	p.HistoryWeight = 0
	store := &fakeStore{averages: map[string]*Average{
		"B0AAAAAAAA": {Units: 999, Samples: 9},
	}}
	products := []model.CanonicalProduct{freshProduct("B0AAAAAAAA", 100, 20)}

	assert.Zero(t, Blend(context.Background(), products, store, p))
	assert.Equal(t, 100, products[0].EstimatedMonthlyUnits)
}

func TestBlend_MissingAverageSkipped(t *testing.T) {
	store := &fakeStore{averages: map[string]*Average{}}
	products := []model.CanonicalProduct{freshProduct("B0AAAAAAAA", 100, 20)}

	assert.Zero(t, Blend(context.Background(), products, store, estimate.DefaultPolicy()))
	assert.Equal(t, 100, products[0].EstimatedMonthlyUnits)
}

func TestBlend_LookupFailureNeverBreaksEstimate(t *testing.T) {
	store := &fakeStore{err: eris.New("connection refused")}
	products := []model.CanonicalProduct{freshProduct("B0AAAAAAAA", 100, 20)}

	assert.Zero(t, Blend(context.Background(), products, store, estimate.DefaultPolicy()))
	assert.Equal(t, 100, products[0].EstimatedMonthlyUnits)
}

func TestBlend_NeverNullsALiveProduct(t *testing.T) {
	store := &fakeStore{averages: map[string]*Average{
		"B0AAAAAAAA": {Units: 0, Samples: 3}, // market collapsed historically
	}}
	products := []model.CanonicalProduct{freshProduct("B0AAAAAAAA", 1, 20)}

	Blend(context.Background(), products, store, estimate.DefaultPolicy())
	// 1 * 0.7 + 0 * 0.3 rounds to 1, and the floor holds regardless.
	assert.GreaterOrEqual(t, products[0].EstimatedMonthlyUnits, 1)
}
