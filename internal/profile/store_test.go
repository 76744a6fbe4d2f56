package profile

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsight/demand-cli/internal/model"
)

func TestNormalizeKeyword(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase passthrough", "garlic press", "garlic press"},
		{"case folding", "Garlic PRESS", "garlic press"},
		{"whitespace collapse", "  garlic   press \t", "garlic press"},
		{"compatibility normalization", "ｇａｒｌｉｃ ｐｒｅｓｓ", "garlic press"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKeyword(tt.in))
		})
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.Lookup(ctx, "garlic press")
	assert.True(t, eris.Is(err, ErrNotFound))

	require.NoError(t, s.Put(ctx, model.CalibrationProfile{
		Keyword:           "Garlic  Press",
		UnitsMultiplier:   1.2,
		RevenueMultiplier: 1.1,
		Confidence:        model.ConfidenceHigh,
	}))

	// Lookup normalizes the query the same way Put normalized the key.
	p, err := s.Lookup(ctx, "garlic press")
	require.NoError(t, err)
	assert.Equal(t, "garlic press", p.Keyword)
	assert.Equal(t, 1.2, p.UnitsMultiplier)
}

func TestMemoryStore_ListSorted(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, model.CalibrationProfile{Keyword: "zester", UnitsMultiplier: 1}))
	require.NoError(t, s.Put(ctx, model.CalibrationProfile{Keyword: "apple corer", UnitsMultiplier: 1}))

	out, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "apple corer", out[0].Keyword)
	assert.Equal(t, "zester", out[1].Keyword)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(ctx, t.TempDir()+"/profiles.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Lookup(ctx, "garlic press")
	assert.True(t, eris.Is(err, ErrNotFound))

	require.NoError(t, s.Put(ctx, model.CalibrationProfile{
		Keyword:           "garlic press",
		Category:          "kitchen",
		UnitsMultiplier:   1.3,
		RevenueMultiplier: 1.25,
		Confidence:        model.ConfidenceMedium,
	}))

	p, err := s.Lookup(ctx, "Garlic Press")
	require.NoError(t, err)
	assert.Equal(t, 1.3, p.UnitsMultiplier)
	assert.Equal(t, "kitchen", p.Category)

	// Upsert overwrites.
	require.NoError(t, s.Put(ctx, model.CalibrationProfile{
		Keyword:         "garlic press",
		UnitsMultiplier: 2.0,
	}))
	p, err = s.Lookup(ctx, "garlic press")
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.UnitsMultiplier)

	out, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
