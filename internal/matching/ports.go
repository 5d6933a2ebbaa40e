package matching

import (
	"context"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

// ReportStore is the subset of the report store the engine reads and writes.
// FindByID returns models.ErrNotFound for unknown IDs.
type ReportStore interface {
	FindByID(ctx context.Context, id string) (*models.Report, error)
	FindCandidates(ctx context.Context, query models.CandidateQuery) ([]*models.Report, error)
	SetEmbedding(ctx context.Context, id string, embedding []float64) error
	// AppendLinkedCandidate must append atomically and skip links already present.
	AppendLinkedCandidate(ctx context.Context, id string, link models.LinkedCandidate) error
}

// MatchStore persists match records, unique on (lost, found).
// FindByPair returns models.ErrNotFound and Insert returns models.ErrDuplicate
// when the pair is already taken.
type MatchStore interface {
	FindByPair(ctx context.Context, lostReportID, foundReportID string) (*models.Match, error)
	Insert(ctx context.Context, match *models.Match) error
	// UpdateScore applies update only when update.Score is strictly higher than
	// the stored score and reports whether a row changed.
	UpdateScore(ctx context.Context, id string, update models.ScoreUpdate) (bool, error)
}

// Embedder produces an embedding for a report, or nil when none is available
type Embedder interface {
	Embed(ctx context.Context, report *models.Report) []float64
}

// VectorIndex receives freshly computed report embeddings
type VectorIndex interface {
	UpsertReportVector(ctx context.Context, report *models.Report, vector []float64) error
}

// Notifier is told about matches that still need notifying
type Notifier interface {
	PublishMatchCreated(ctx context.Context, event models.MatchCreatedEvent) error
}
