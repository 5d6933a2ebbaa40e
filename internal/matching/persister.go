package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/metrics"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

// Outcome describes what an upsert did to the match store
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeUnchanged  Outcome = "unchanged"
)

// Persister writes scored pairs as match records, unique per (lost, found)
type Persister struct {
	reports  ReportStore
	matches  MatchStore
	notifier Notifier
	now      func() time.Time
}

// NewPersister creates a new Persister. notifier may be nil.
func NewPersister(reports ReportStore, matches MatchStore, notifier Notifier) *Persister {
	return &Persister{
		reports:  reports,
		matches:  matches,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpsertMatch creates the match for a and b, or supersedes the stored one when
// result scores strictly higher. Equal or lower scores leave the record untouched.
func (p *Persister) UpsertMatch(ctx context.Context, a, b *models.Report, result Result) (*models.Match, Outcome, error) {
	lost, found, err := normalizePair(a, b)
	if err != nil {
		metrics.MatchUpsertsTotal.WithLabelValues("invalid").Inc()
		return nil, "", err
	}

	existing, err := p.matches.FindByPair(ctx, lost.ID, found.ID)
	switch {
	case err == nil:
		return p.supersede(ctx, existing, result)
	case !errors.Is(err, models.ErrNotFound):
		metrics.MatchUpsertsTotal.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("failed to look up match %s/%s: %w: %w", lost.ID, found.ID, ErrPersistenceConflict, err)
	}

	match, err := p.create(ctx, lost, found, result)
	if errors.Is(err, models.ErrDuplicate) {
		// A concurrent run inserted the pair first; merge into its record.
		log.Debug().
			Str("lost_report_id", lost.ID).
			Str("found_report_id", found.ID).
			Msg("Match insert lost race, re-reading pair")

		existing, err = p.matches.FindByPair(ctx, lost.ID, found.ID)
		if err != nil {
			metrics.MatchUpsertsTotal.WithLabelValues("error").Inc()
			return nil, "", fmt.Errorf("failed to re-read match %s/%s: %w: %w", lost.ID, found.ID, ErrPersistenceConflict, err)
		}
		return p.supersede(ctx, existing, result)
	}
	if err != nil {
		metrics.MatchUpsertsTotal.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("failed to insert match %s/%s: %w: %w", lost.ID, found.ID, ErrPersistenceConflict, err)
	}

	p.linkReports(ctx, lost, found, match)
	p.notify(ctx, match)

	metrics.MatchUpsertsTotal.WithLabelValues(string(OutcomeCreated)).Inc()
	log.Info().
		Str("match_id", match.ID).
		Str("lost_report_id", lost.ID).
		Str("found_report_id", found.ID).
		Int("score", match.Score).
		Msg("Match created")

	return match, OutcomeCreated, nil
}

func (p *Persister) create(ctx context.Context, lost, found *models.Report, result Result) (*models.Match, error) {
	now := p.now()
	match := &models.Match{
		ID:             uuid.New().String(),
		LostReportID:   lost.ID,
		FoundReportID:  found.ID,
		LostOwnerID:    lost.OwnerID,
		FoundOwnerID:   found.OwnerID,
		Score:          result.Total,
		Confidence:     models.ConfidenceFor(result.Total),
		Status:         models.MatchStatusPending,
		ScoreBreakdown: result.Breakdown,
		MatchReasons:   cloneReasons(result.Reasons),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.matches.Insert(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (p *Persister) supersede(ctx context.Context, existing *models.Match, result Result) (*models.Match, Outcome, error) {
	if result.Total <= existing.Score {
		metrics.MatchUpsertsTotal.WithLabelValues(string(OutcomeUnchanged)).Inc()
		return existing, OutcomeUnchanged, nil
	}

	update := models.ScoreUpdate{
		Score:          result.Total,
		Confidence:     models.ConfidenceFor(result.Total),
		ScoreBreakdown: result.Breakdown,
		MatchReasons:   cloneReasons(result.Reasons),
		UpdatedAt:      p.now(),
	}
	changed, err := p.matches.UpdateScore(ctx, existing.ID, update)
	if err != nil {
		metrics.MatchUpsertsTotal.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("failed to update match %s: %w: %w", existing.ID, ErrPersistenceConflict, err)
	}
	if !changed {
		// Another run stored an equal or higher score in between.
		current, err := p.matches.FindByPair(ctx, existing.LostReportID, existing.FoundReportID)
		if err != nil {
			current = existing
		}
		metrics.MatchUpsertsTotal.WithLabelValues(string(OutcomeUnchanged)).Inc()
		return current, OutcomeUnchanged, nil
	}

	updated := *existing
	updated.Score = update.Score
	updated.Confidence = update.Confidence
	updated.ScoreBreakdown = update.ScoreBreakdown
	updated.MatchReasons = update.MatchReasons
	updated.UpdatedAt = update.UpdatedAt

	metrics.MatchUpsertsTotal.WithLabelValues(string(OutcomeSuperseded)).Inc()
	log.Info().
		Str("match_id", existing.ID).
		Int("previous_score", existing.Score).
		Int("score", updated.Score).
		Msg("Match score superseded")

	return &updated, OutcomeSuperseded, nil
}

// linkReports appends a pending backlink to each side. Failures are logged only:
// the match record is already durable.
func (p *Persister) linkReports(ctx context.Context, lost, found *models.Report, match *models.Match) {
	links := []struct {
		owner, counterpart string
	}{
		{owner: lost.ID, counterpart: found.ID},
		{owner: found.ID, counterpart: lost.ID},
	}

	for _, l := range links {
		link := models.LinkedCandidate{
			ReportID:  l.counterpart,
			Score:     match.Score,
			Status:    models.CandidateStatusPending,
			MatchedAt: match.CreatedAt,
		}
		if err := p.reports.AppendLinkedCandidate(ctx, l.owner, link); err != nil {
			log.Error().
				Err(err).
				Str("report_id", l.owner).
				Str("candidate_id", l.counterpart).
				Str("match_id", match.ID).
				Msg("Failed to append linked candidate")
		}
	}
}

func (p *Persister) notify(ctx context.Context, match *models.Match) {
	if p.notifier == nil {
		return
	}

	event := models.MatchCreatedEvent{
		MatchID:       match.ID,
		LostReportID:  match.LostReportID,
		FoundReportID: match.FoundReportID,
		LostOwnerID:   match.LostOwnerID,
		FoundOwnerID:  match.FoundOwnerID,
		Score:         match.Score,
		Confidence:    match.Confidence,
		Timestamp:     match.CreatedAt,
	}
	if err := p.notifier.PublishMatchCreated(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("match_id", match.ID).
			Msg("Failed to publish match.created event")
	}
}

// normalizePair orders a pair as (lost, found)
func normalizePair(a, b *models.Report) (*models.Report, *models.Report, error) {
	if a == nil || b == nil {
		return nil, nil, fmt.Errorf("nil report in pair: %w", ErrInvariantViolation)
	}
	switch {
	case a.Kind == models.ReportKindLost && b.Kind == models.ReportKindFound:
		return a, b, nil
	case a.Kind == models.ReportKindFound && b.Kind == models.ReportKindLost:
		return b, a, nil
	default:
		return nil, nil, fmt.Errorf("reports %s (%s) and %s (%s) are not a lost/found pair: %w",
			a.ID, a.Kind, b.ID, b.Kind, ErrInvariantViolation)
	}
}

func cloneReasons(reasons []models.MatchReason) []models.MatchReason {
	if reasons == nil {
		return []models.MatchReason{}
	}
	out := make([]models.MatchReason, len(reasons))
	copy(out, reasons)
	return out
}
