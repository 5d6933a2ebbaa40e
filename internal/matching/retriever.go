package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

// DefaultCandidateLimit is the page size of a candidate query
const DefaultCandidateLimit = 50

// Retriever finds counterpart reports worth scoring
type Retriever struct {
	reports ReportStore
	limit   int
}

// NewRetriever creates a new Retriever. A non-positive limit uses DefaultCandidateLimit.
func NewRetriever(reports ReportStore, limit int) *Retriever {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	return &Retriever{reports: reports, limit: limit}
}

// FindCandidates loads the source report and returns its candidates
func (r *Retriever) FindCandidates(ctx context.Context, reportID string) ([]*models.Report, error) {
	source, err := loadReport(ctx, r.reports, reportID)
	if err != nil {
		return nil, err
	}
	return r.CandidatesFor(ctx, source)
}

// CandidatesFor returns active reports of the opposite kind in the same category
func (r *Retriever) CandidatesFor(ctx context.Context, source *models.Report) ([]*models.Report, error) {
	if !source.Kind.Valid() {
		return nil, fmt.Errorf("report %s has unknown kind %q: %w", source.ID, source.Kind, ErrInvariantViolation)
	}
	if source.Category == "" {
		return nil, fmt.Errorf("report %s has no category: %w", source.ID, ErrInvariantViolation)
	}

	candidates, err := r.reports.FindCandidates(ctx, models.CandidateQuery{
		Kind:      source.Kind.Opposite(),
		Status:    models.ReportStatusActive,
		Category:  source.Category,
		ExcludeID: source.ID,
		Limit:     r.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates for report %s: %w", source.ID, err)
	}

	// Stores are trusted for the query, but the source itself must never pair with itself.
	filtered := make([]*models.Report, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.ID == source.ID {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) > r.limit {
		filtered = filtered[:r.limit]
	}
	return filtered, nil
}

func loadReport(ctx context.Context, reports ReportStore, id string) (*models.Report, error) {
	report, err := reports.FindByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return report, nil
}
