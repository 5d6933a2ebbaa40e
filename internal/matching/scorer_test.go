package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

func factors(reasons []models.MatchReason) []string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, r.Factor)
	}
	return out
}

func TestScorer_SameCityBrandWithinHours(t *testing.T) {
	source := newReport("lost-1", models.ReportKindLost)
	source.Location.City = "Paris"
	source.Attributes.Brand = "Sony"

	candidate := newReport("found-1", models.ReportKindFound)
	candidate.Location.City = "paris"
	candidate.Attributes.Brand = "SONY"
	candidate.EventDate = at(12 * time.Hour)

	result := NewScorer().Score(source, candidate, nil)

	assert.Equal(t, models.ScoreBreakdown{
		Category:  25,
		Attribute: 10,
		Location:  20,
		Time:      15,
		Embedding: 0,
		Text:      0,
	}, result.Breakdown)
	assert.Equal(t, 70, result.Total)
	assert.Equal(t, []string{FactorCategory, FactorAttribute, FactorLocation, FactorTime}, factors(result.Reasons))
	assert.Equal(t, "Both items are in \"electronics\" category", result.Reasons[0].Detail)
	assert.Equal(t, "Matching: brand", result.Reasons[1].Detail)
	assert.Equal(t, "Both items in Paris", result.Reasons[2].Detail)
}

func TestScorer_CoordinatesMoreThanMonthApart(t *testing.T) {
	source := newReport("lost-1", models.ReportKindLost)
	source.Location.Coordinates = &models.Coordinates{Longitude: 21.0122, Latitude: 52.2297}
	source.Attributes = models.Attributes{Color: "black", Brand: "Apple", Model: "iPhone 13"}

	candidate := newReport("found-1", models.ReportKindFound)
	candidate.Location.Coordinates = &models.Coordinates{Longitude: 21.0122, Latitude: 52.2297}
	candidate.Attributes = source.Attributes
	candidate.EventDate = at(31 * 24 * time.Hour)

	result := NewScorer().Score(source, candidate, nil)

	assert.Equal(t, 0, result.Breakdown.Time)
	assert.Equal(t, 0, result.Breakdown.Embedding)
	assert.Equal(t, 70, result.Total)
	assert.LessOrEqual(t, result.Total, 85)
	assert.NotContains(t, factors(result.Reasons), FactorTime)
}

func TestScorer_Category(t *testing.T) {
	source := newReport("lost-1", models.ReportKindLost)
	candidate := newReport("found-1", models.ReportKindFound)
	candidate.Category = "wallets"
	candidate.EventDate = at(90 * 24 * time.Hour)

	result := NewScorer().Score(source, candidate, nil)

	assert.Equal(t, 0, result.Breakdown.Category)
	assert.Equal(t, 0, result.Total)
	assert.Empty(t, result.Reasons)
}

func TestScorer_Attributes(t *testing.T) {
	tests := []struct {
		name     string
		a, b     models.Attributes
		expected int
		detail   string
	}{
		{
			name:     "all three match",
			a:        models.Attributes{Color: "Red", Brand: "Nike", Model: "Air"},
			b:        models.Attributes{Color: "red", Brand: "NIKE", Model: "air"},
			expected: 25,
			detail:   "Matching: color, brand, model",
		},
		{
			name:     "color only",
			a:        models.Attributes{Color: "blue"},
			b:        models.Attributes{Color: "Blue", Brand: "Adidas"},
			expected: 8,
			detail:   "Matching: color",
		},
		{
			name:     "color and model",
			a:        models.Attributes{Color: "blue", Model: "X1"},
			b:        models.Attributes{Color: "blue", Model: "x1"},
			expected: 15,
			detail:   "Matching: color, model",
		},
		{
			name:     "absent values never match",
			a:        models.Attributes{},
			b:        models.Attributes{},
			expected: 0,
		},
		{
			name:     "different values",
			a:        models.Attributes{Brand: "Sony"},
			b:        models.Attributes{Brand: "Samsung"},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newReport("lost-1", models.ReportKindLost)
			source.Attributes = tt.a
			candidate := newReport("found-1", models.ReportKindFound)
			candidate.Attributes = tt.b

			result := NewScorer().Score(source, candidate, nil)

			assert.Equal(t, tt.expected, result.Breakdown.Attribute)
			if tt.expected > 0 {
				require.Len(t, result.Reasons, 3)
				assert.Equal(t, tt.detail, result.Reasons[1].Detail)
			} else {
				assert.NotContains(t, factors(result.Reasons), FactorAttribute)
			}
		})
	}
}

func TestScorer_Location(t *testing.T) {
	origin := &models.Coordinates{Longitude: 0, Latitude: 0}

	tests := []struct {
		name     string
		a, b     models.Location
		expected int
	}{
		{name: "same city", a: models.Location{City: "Kraków"}, b: models.Location{City: "kraków"}, expected: 20},
		{
			name:     "different city falls back to coordinates",
			a:        models.Location{City: "Warszawa", Coordinates: origin},
			b:        models.Location{City: "Piaseczno", Coordinates: &models.Coordinates{Latitude: 0.005}},
			expected: 20,
		},
		{name: "within 5km", a: models.Location{Coordinates: origin}, b: models.Location{Coordinates: &models.Coordinates{Latitude: 0.03}}, expected: 15},
		{name: "within 10km", a: models.Location{Coordinates: origin}, b: models.Location{Coordinates: &models.Coordinates{Latitude: 0.08}}, expected: 10},
		{name: "far away", a: models.Location{Coordinates: origin}, b: models.Location{Coordinates: &models.Coordinates{Latitude: 0.2}}, expected: 0},
		{name: "city on one side only", a: models.Location{City: "Gdańsk"}, b: models.Location{Coordinates: origin}, expected: 0},
		{name: "nothing comparable", a: models.Location{}, b: models.Location{}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newReport("lost-1", models.ReportKindLost)
			source.Location = tt.a
			candidate := newReport("found-1", models.ReportKindFound)
			candidate.Location = tt.b

			result := NewScorer().Score(source, candidate, nil)

			assert.Equal(t, tt.expected, result.Breakdown.Location)
		})
	}
}

func TestScorer_Time(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name     string
		offset   time.Duration
		expected int
	}{
		{name: "same moment", offset: 0, expected: 15},
		{name: "exactly one day", offset: day, expected: 15},
		{name: "two days before", offset: -2 * day, expected: 12},
		{name: "five days", offset: 5 * day, expected: 8},
		{name: "twenty days", offset: 20 * day, expected: 4},
		{name: "exactly thirty days", offset: 30 * day, expected: 4},
		{name: "thirty one days", offset: 31 * day, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newReport("lost-1", models.ReportKindLost)
			candidate := newReport("found-1", models.ReportKindFound)
			candidate.EventDate = at(tt.offset)

			result := NewScorer().Score(source, candidate, nil)

			assert.Equal(t, tt.expected, result.Breakdown.Time)
		})
	}

	t.Run("falls back to creation time", func(t *testing.T) {
		source := newReport("lost-1", models.ReportKindLost)
		source.EventDate = nil
		candidate := newReport("found-1", models.ReportKindFound)
		candidate.EventDate = nil
		candidate.CreatedAt = baseTime.Add(6 * day)

		result := NewScorer().Score(source, candidate, nil)

		assert.Equal(t, 8, result.Breakdown.Time)
	})
}

func TestScorer_Embedding(t *testing.T) {
	tests := []struct {
		name     string
		source   []float64
		other    []float64
		expected int
	}{
		{name: "identical", source: []float64{0.1, 0.2, 0.3}, other: []float64{0.1, 0.2, 0.3}, expected: 15},
		{name: "45 degrees rounds up", source: []float64{1, 0}, other: []float64{1, 1}, expected: 11},
		{name: "orthogonal", source: []float64{1, 0}, other: []float64{0, 1}, expected: 0},
		{name: "opposite floors at zero", source: []float64{1, 0}, other: []float64{-1, 0}, expected: 0},
		{name: "no source embedding", source: nil, other: []float64{1, 0}, expected: 0},
		{name: "no candidate embedding", source: []float64{1, 0}, other: nil, expected: 0},
		{name: "dimension mismatch", source: []float64{1, 0}, other: []float64{1, 0, 0}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newReport("lost-1", models.ReportKindLost)
			candidate := newReport("found-1", models.ReportKindFound)
			candidate.Embedding = tt.other

			result := NewScorer().Score(source, candidate, tt.source)

			assert.Equal(t, tt.expected, result.Breakdown.Embedding)
			if tt.expected == 0 {
				assert.NotContains(t, factors(result.Reasons), FactorEmbedding)
			} else {
				assert.Equal(t, FactorEmbedding, result.Reasons[len(result.Reasons)-1].Factor)
			}
		})
	}
}

func TestScorer_PerfectPair(t *testing.T) {
	source := newReport("lost-1", models.ReportKindLost)
	source.Attributes = models.Attributes{Color: "black", Brand: "Apple", Model: "iPhone"}
	source.Location.City = "Wrocław"
	candidate := newReport("found-1", models.ReportKindFound)
	candidate.Attributes = source.Attributes
	candidate.Location.City = "Wrocław"
	candidate.Embedding = []float64{0.5, 0.5}

	result := NewScorer().Score(source, candidate, []float64{0.5, 0.5})

	assert.Equal(t, MaxScore, result.Total)
	assert.Equal(t, []string{FactorCategory, FactorAttribute, FactorLocation, FactorTime, FactorEmbedding}, factors(result.Reasons))
}

func TestScorer_DoesNotMutateInputs(t *testing.T) {
	source := newReport("lost-1", models.ReportKindLost)
	candidate := newReport("found-1", models.ReportKindFound)
	candidate.Embedding = []float64{1, 2}
	embedding := []float64{2, 1}

	before, beforeCandidate := *source, *candidate
	first := NewScorer().Score(source, candidate, embedding)
	second := NewScorer().Score(source, candidate, embedding)

	assert.Equal(t, first, second)
	assert.Equal(t, before, *source)
	assert.Equal(t, beforeCandidate, *candidate)
	assert.Equal(t, []float64{2, 1}, embedding)
}
