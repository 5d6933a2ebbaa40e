package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

func TestDistanceKm(t *testing.T) {
	paris := models.Coordinates{Longitude: 2.3522, Latitude: 48.8566}
	london := models.Coordinates{Longitude: -0.1276, Latitude: 51.5072}

	t.Run("same point is zero", func(t *testing.T) {
		for _, p := range []models.Coordinates{paris, london, {}, {Longitude: 179.9, Latitude: -89.9}} {
			assert.Equal(t, 0.0, DistanceKm(p, p))
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, DistanceKm(paris, london), DistanceKm(london, paris))
	})

	t.Run("paris to london", func(t *testing.T) {
		assert.InDelta(t, 343.5, DistanceKm(paris, london), 1.0)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		a := models.Coordinates{Longitude: 0, Latitude: 0}
		b := models.Coordinates{Longitude: 0, Latitude: 1}
		assert.InDelta(t, 111.19, DistanceKm(a, b), 0.01)
	})
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		u, v     []float64
		expected float64
	}{
		{name: "identical", u: []float64{1, 2, 3}, v: []float64{1, 2, 3}, expected: 1},
		{name: "orthogonal", u: []float64{1, 0}, v: []float64{0, 1}, expected: 0},
		{name: "opposite", u: []float64{1, 1}, v: []float64{-1, -1}, expected: -1},
		{name: "scaled", u: []float64{1, 2}, v: []float64{2, 4}, expected: 1},
		{name: "empty left", u: nil, v: []float64{1}, expected: 0},
		{name: "empty right", u: []float64{1}, v: []float64{}, expected: 0},
		{name: "length mismatch", u: []float64{1, 2}, v: []float64{1, 2, 3}, expected: 0},
		{name: "zero norm", u: []float64{0, 0}, v: []float64{1, 1}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.u, tt.v)
			assert.InDelta(t, tt.expected, got, 1e-9)
			assert.InDelta(t, got, CosineSimilarity(tt.v, tt.u), 1e-12)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}
