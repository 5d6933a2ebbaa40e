package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/similarity"
)

// Factor caps. They sum to MaxScore.
const (
	CategoryPoints  = 25
	AttributeCap    = 25
	LocationPoints  = 20
	TimePoints      = 15
	EmbeddingPoints = 15
	TextPoints      = 0
	MaxScore        = 100

	colorPoints = 8
	brandPoints = 10
	modelPoints = 7
)

// Reason factor names, in the order they are reported
const (
	FactorCategory  = "category"
	FactorAttribute = "attributes"
	FactorLocation  = "location"
	FactorTime      = "time"
	FactorEmbedding = "embedding"
)

// Result is the outcome of scoring one report pair
type Result struct {
	Total     int                   `json:"total"`
	Breakdown models.ScoreBreakdown `json:"breakdown"`
	Reasons   []models.MatchReason  `json:"reasons"`
}

// distanceTier awards points for coordinates closer than MaxKm
type distanceTier struct {
	MaxKm  float64
	Points int
	Detail string
}

var distanceTiers = []distanceTier{
	{MaxKm: 1, Points: 20, Detail: "Items reported within 1km of each other"},
	{MaxKm: 5, Points: 15, Detail: "Items reported within 5km of each other"},
	{MaxKm: 10, Points: 10, Detail: "Items reported within 10km of each other"},
}

// timeTier awards points for event dates at most MaxDays apart
type timeTier struct {
	MaxDays float64
	Points  int
	Detail  string
}

var timeTiers = []timeTier{
	{MaxDays: 1, Points: 15, Detail: "Items lost/found within 1 day of each other"},
	{MaxDays: 3, Points: 12, Detail: "Items lost/found within 3 days of each other"},
	{MaxDays: 7, Points: 8, Detail: "Items lost/found within a week of each other"},
	{MaxDays: 30, Points: 4, Detail: "Items lost/found within a month of each other"},
}

// Scorer computes the weighted compatibility score of a report pair.
// It is deterministic and never touches its inputs.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score rates candidate against source. sourceEmbedding may be nil.
func (s *Scorer) Score(source, candidate *models.Report, sourceEmbedding []float64) Result {
	var result Result

	if pts, reason, ok := s.category(source, candidate); ok {
		result.Breakdown.Category = pts
		result.Reasons = append(result.Reasons, reason)
	}
	if pts, reason, ok := s.attributes(source.Attributes, candidate.Attributes); ok {
		result.Breakdown.Attribute = pts
		result.Reasons = append(result.Reasons, reason)
	}
	if pts, reason, ok := s.location(source.Location, candidate.Location); ok {
		result.Breakdown.Location = pts
		result.Reasons = append(result.Reasons, reason)
	}
	if pts, reason, ok := s.time(source, candidate); ok {
		result.Breakdown.Time = pts
		result.Reasons = append(result.Reasons, reason)
	}
	if pts, reason, ok := s.embedding(sourceEmbedding, candidate.Embedding); ok {
		result.Breakdown.Embedding = pts
		result.Reasons = append(result.Reasons, reason)
	}
	result.Breakdown.Text = TextPoints

	result.Total = min(result.Breakdown.Sum(), MaxScore)
	return result
}

// category is re-checked here even though retrieval already filters on it,
// so a looser retrieval can never inflate scores.
func (s *Scorer) category(source, candidate *models.Report) (int, models.MatchReason, bool) {
	if source.Category == "" || source.Category != candidate.Category {
		return 0, models.MatchReason{}, false
	}
	return CategoryPoints, models.MatchReason{
		Factor: FactorCategory,
		Score:  CategoryPoints,
		Detail: fmt.Sprintf("Both items are in %q category", source.Category),
	}, true
}

func (s *Scorer) attributes(a, b models.Attributes) (int, models.MatchReason, bool) {
	var matched []string
	points := 0

	if equalFold(a.Color, b.Color) {
		points += colorPoints
		matched = append(matched, "color")
	}
	if equalFold(a.Brand, b.Brand) {
		points += brandPoints
		matched = append(matched, "brand")
	}
	if equalFold(a.Model, b.Model) {
		points += modelPoints
		matched = append(matched, "model")
	}

	if points == 0 {
		return 0, models.MatchReason{}, false
	}
	points = min(points, AttributeCap)
	return points, models.MatchReason{
		Factor: FactorAttribute,
		Score:  points,
		Detail: "Matching: " + strings.Join(matched, ", "),
	}, true
}

func (s *Scorer) location(a, b models.Location) (int, models.MatchReason, bool) {
	if a.City != "" && b.City != "" && strings.EqualFold(a.City, b.City) {
		return LocationPoints, models.MatchReason{
			Factor: FactorLocation,
			Score:  LocationPoints,
			Detail: "Both items in " + a.City,
		}, true
	}

	if a.Coordinates == nil || b.Coordinates == nil {
		return 0, models.MatchReason{}, false
	}

	distance := similarity.DistanceKm(*a.Coordinates, *b.Coordinates)
	for _, tier := range distanceTiers {
		if distance < tier.MaxKm {
			return tier.Points, models.MatchReason{
				Factor: FactorLocation,
				Score:  tier.Points,
				Detail: tier.Detail,
			}, true
		}
	}
	return 0, models.MatchReason{}, false
}

func (s *Scorer) time(source, candidate *models.Report) (int, models.MatchReason, bool) {
	diff := source.EffectiveDate().Sub(candidate.EffectiveDate())
	days := math.Abs(diff.Hours()) / 24

	for _, tier := range timeTiers {
		if days <= tier.MaxDays {
			return tier.Points, models.MatchReason{
				Factor: FactorTime,
				Score:  tier.Points,
				Detail: tier.Detail,
			}, true
		}
	}
	return 0, models.MatchReason{}, false
}

func (s *Scorer) embedding(sourceEmbedding, candidateEmbedding []float64) (int, models.MatchReason, bool) {
	if len(sourceEmbedding) == 0 || len(candidateEmbedding) == 0 {
		return 0, models.MatchReason{}, false
	}

	sim := similarity.CosineSimilarity(sourceEmbedding, candidateEmbedding)
	points := int(math.Round(sim * EmbeddingPoints))
	if points <= 0 {
		return 0, models.MatchReason{}, false
	}
	return points, models.MatchReason{
		Factor: FactorEmbedding,
		Score:  points,
		Detail: fmt.Sprintf("Semantic similarity of %.0f%%", sim*100),
	}, true
}

// equalFold compares two optional attribute values; absent values never match
func equalFold(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && strings.EqualFold(a, b)
}
