package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/metrics"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

// Config tunes a Matcher
type Config struct {
	MinScore       int
	MaxMatches     int
	CandidateLimit int
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		MinScore:       40,
		MaxMatches:     10,
		CandidateLimit: DefaultCandidateLimit,
	}
}

// RunSummary reports what one match search did
type RunSummary struct {
	ReportID          string
	Candidates        int
	Qualified         int
	Created           int
	Superseded        int
	Unchanged         int
	Failed            int
	EmbeddingComputed bool
	Matches           []*models.Match
}

type scoredCandidate struct {
	report *models.Report
	result Result
}

// Matcher runs match searches for newly created reports
type Matcher struct {
	reports   ReportStore
	embedder  Embedder
	index     VectorIndex
	retriever *Retriever
	scorer    *Scorer
	persister *Persister
	cfg       Config

	wg sync.WaitGroup
}

// NewMatcher creates a new Matcher. embedder, index and notifier may be nil.
func NewMatcher(reports ReportStore, matches MatchStore, embedder Embedder, index VectorIndex, notifier Notifier, cfg Config) *Matcher {
	defaults := DefaultConfig()
	if cfg.MinScore <= 0 {
		cfg.MinScore = defaults.MinScore
	}
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = defaults.MaxMatches
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaults.CandidateLimit
	}

	return &Matcher{
		reports:   reports,
		embedder:  embedder,
		index:     index,
		retriever: NewRetriever(reports, cfg.CandidateLimit),
		scorer:    NewScorer(),
		persister: NewPersister(reports, matches, notifier),
		cfg:       cfg,
	}
}

// TriggerMatchSearch starts a detached match search and returns immediately
func (m *Matcher) TriggerMatchSearch(reportID string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Process(context.Background(), reportID)
	}()
}

// Wait blocks until all detached searches have finished
func (m *Matcher) Wait() {
	m.wg.Wait()
}

// Process runs a match search to completion, logging instead of returning errors.
// Cancellation of ctx is ignored once the run has started.
func (m *Matcher) Process(ctx context.Context, reportID string) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			metrics.MatchRunsTotal.WithLabelValues("panic").Inc()
			log.Error().
				Str("report_id", reportID).
				Interface("panic", r).
				Msg("Match search panicked")
		}
	}()

	summary, err := m.Run(ctx, reportID)
	metrics.MatchRunDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrNotFound):
		metrics.MatchRunsTotal.WithLabelValues("not_found").Inc()
		log.Warn().Str("report_id", reportID).Msg("Report not found, skipping match search")
	case errors.Is(err, ErrInvariantViolation):
		metrics.MatchRunsTotal.WithLabelValues("invalid").Inc()
		log.Warn().Err(err).Str("report_id", reportID).Msg("Report cannot be matched")
	case err != nil:
		metrics.MatchRunsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("report_id", reportID).Msg("Match search failed")
	case summary.Candidates == 0:
		metrics.MatchRunsTotal.WithLabelValues("no_candidates").Inc()
	default:
		metrics.MatchRunsTotal.WithLabelValues("completed").Inc()
		log.Info().
			Str("report_id", reportID).
			Int("candidates", summary.Candidates).
			Int("qualified", summary.Qualified).
			Int("created", summary.Created).
			Int("superseded", summary.Superseded).
			Int("failed", summary.Failed).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("Match search completed")
	}
}

// Run performs one synchronous match search for reportID
func (m *Matcher) Run(ctx context.Context, reportID string) (*RunSummary, error) {
	summary := &RunSummary{ReportID: reportID}

	source, err := loadReport(ctx, m.reports, reportID)
	if err != nil {
		return summary, err
	}

	candidates, err := m.retriever.CandidatesFor(ctx, source)
	if err != nil {
		return summary, err
	}
	summary.Candidates = len(candidates)
	if len(candidates) == 0 {
		log.Debug().Str("report_id", reportID).Msg("No candidates found")
		return summary, nil
	}

	embedding, computed := m.resolveEmbedding(ctx, source)
	summary.EmbeddingComputed = computed

	kept := make([]scoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		result := m.scorer.Score(source, candidate, embedding)
		metrics.CandidatesScoredTotal.Inc()
		if result.Total >= m.cfg.MinScore {
			kept = append(kept, scoredCandidate{report: candidate, result: result})
		}
	}
	summary.Qualified = len(kept)

	// Stable so equal scores keep the store's retrieval order.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].result.Total > kept[j].result.Total
	})
	if len(kept) > m.cfg.MaxMatches {
		kept = kept[:m.cfg.MaxMatches]
	}

	for _, sc := range kept {
		match, outcome, err := m.persister.UpsertMatch(ctx, source, sc.report, sc.result)
		if err != nil {
			summary.Failed++
			log.Error().
				Err(err).
				Str("report_id", source.ID).
				Str("candidate_id", sc.report.ID).
				Int("score", sc.result.Total).
				Msg("Failed to persist match")
			continue
		}

		switch outcome {
		case OutcomeCreated:
			summary.Created++
		case OutcomeSuperseded:
			summary.Superseded++
		default:
			summary.Unchanged++
		}
		summary.Matches = append(summary.Matches, match)
	}

	return summary, nil
}

// resolveEmbedding returns the cached embedding or computes it once.
// The cache write and index push are best-effort.
func (m *Matcher) resolveEmbedding(ctx context.Context, source *models.Report) ([]float64, bool) {
	if source.HasEmbedding() {
		return source.Embedding, false
	}
	if m.embedder == nil {
		return nil, false
	}

	embedding := m.embedder.Embed(ctx, source)
	if len(embedding) == 0 {
		return nil, false
	}

	if err := m.reports.SetEmbedding(ctx, source.ID, embedding); err != nil {
		log.Warn().Err(err).Str("report_id", source.ID).Msg("Failed to cache report embedding")
	}

	if m.index != nil {
		if err := m.index.UpsertReportVector(ctx, source, embedding); err != nil {
			metrics.VectorIndexWritesTotal.WithLabelValues("error").Inc()
			log.Warn().Err(err).Str("report_id", source.ID).Msg("Failed to index report embedding")
		} else {
			metrics.VectorIndexWritesTotal.WithLabelValues("success").Inc()
		}
	}

	return embedding, true
}

func (s *RunSummary) String() string {
	return fmt.Sprintf("report=%s candidates=%d qualified=%d created=%d superseded=%d unchanged=%d failed=%d",
		s.ReportID, s.Candidates, s.Qualified, s.Created, s.Superseded, s.Unchanged, s.Failed)
}
