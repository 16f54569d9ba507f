package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Forms(t *testing.T) {
	tests := []struct {
		mention  string
		wantCity string
		ok       bool
	}{
		{"Boston, MA", "Boston", true},
		{"boston, ma", "Boston", true},
		{"Boston MA", "Boston", true},
		{"boston", "Boston", true},
		{"  Seattle, WA  ", "Seattle", true},
		{"Springfield, XX", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		p, ok := Resolve(tt.mention)
		require.Equal(t, tt.ok, ok, "mention: %q", tt.mention)
		if ok {
			assert.Equal(t, tt.wantCity, p.City)
			assert.NotNil(t, p.Point)
		}
	}
}

func TestDistanceKm(t *testing.T) {
	ny, ok := Resolve("New York, NY")
	require.True(t, ok)
	la, ok := Resolve("Los Angeles, CA")
	require.True(t, ok)

	// Great-circle NYC to LA is roughly 3940 km.
	d := DistanceKm(ny.Point, la.Point)
	assert.InDelta(t, 3940, d, 40)

	// Symmetric, and zero to itself.
	assert.InDelta(t, d, DistanceKm(la.Point, ny.Point), 0.001)
	assert.Zero(t, DistanceKm(ny.Point, ny.Point))
}

func TestNearestSiteKm(t *testing.T) {
	boston, ok := Resolve("Boston, MA")
	require.True(t, ok)

	km, found := NearestSiteKm(boston, []string{
		"Seattle, WA",
		"Unresolvable Hamlet, ZZ",
		"New York, NY",
	})
	require.True(t, found)

	ny, _ := Resolve("New York, NY")
	assert.InDelta(t, DistanceKm(boston.Point, ny.Point), km, 0.1)
}

func TestNearestSiteKm_NoResolvableSites(t *testing.T) {
	boston, _ := Resolve("Boston, MA")

	_, found := NearestSiteKm(boston, []string{"Nowhere Special"})
	assert.False(t, found)

	_, found = NearestSiteKm(boston, nil)
	assert.False(t, found)
}
