// Package similarity holds the pure geo and vector math used for scoring.
package similarity

import (
	"math"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between two points in kilometers
func DistanceKm(a, b models.Coordinates) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// CosineSimilarity returns dot(u,v)/(|u||v|).
// Empty or mismatched vectors and zero norms yield 0.
func CosineSimilarity(u, v []float64) float64 {
	if len(u) == 0 || len(v) == 0 || len(u) != len(v) {
		return 0
	}

	var dot, normU, normV float64
	for i := range u {
		dot += u[i] * v[i]
		normU += u[i] * u[i]
		normV += v[i] * v[i]
	}

	magnitude := math.Sqrt(normU) * math.Sqrt(normV)
	if magnitude == 0 {
		return 0
	}

	// rounding can push |sim| a hair past 1 for parallel vectors
	return math.Max(-1, math.Min(1, dot/magnitude))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
