package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

const matchColumns = `id, lost_report_id, found_report_id, lost_owner_id, found_owner_id,
	score, confidence, status, score_breakdown, match_reasons,
	notified_lost, notified_found, created_at, updated_at`

type matchRow struct {
	ID             string                       `db:"id"`
	LostReportID   string                       `db:"lost_report_id"`
	FoundReportID  string                       `db:"found_report_id"`
	LostOwnerID    string                       `db:"lost_owner_id"`
	FoundOwnerID   string                       `db:"found_owner_id"`
	Score          int                          `db:"score"`
	Confidence     string                       `db:"confidence"`
	Status         string                       `db:"status"`
	ScoreBreakdown JSONB[models.ScoreBreakdown] `db:"score_breakdown"`
	MatchReasons   JSONB[[]models.MatchReason]  `db:"match_reasons"`
	NotifiedLost   bool                         `db:"notified_lost"`
	NotifiedFound  bool                         `db:"notified_found"`
	CreatedAt      time.Time                    `db:"created_at"`
	UpdatedAt      time.Time                    `db:"updated_at"`
}

func (r *matchRow) toModel() *models.Match {
	reasons := r.MatchReasons.Data
	if reasons == nil {
		reasons = []models.MatchReason{}
	}
	return &models.Match{
		ID:             r.ID,
		LostReportID:   r.LostReportID,
		FoundReportID:  r.FoundReportID,
		LostOwnerID:    r.LostOwnerID,
		FoundOwnerID:   r.FoundOwnerID,
		Score:          r.Score,
		Confidence:     models.Confidence(r.Confidence),
		Status:         models.MatchStatus(r.Status),
		ScoreBreakdown: r.ScoreBreakdown.Data,
		MatchReasons:   reasons,
		NotificationsSent: models.NotificationFlags{
			Lost:  r.NotifiedLost,
			Found: r.NotifiedFound,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// MatchRepository is the Postgres match store
type MatchRepository struct {
	db *sqlx.DB
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// FindByPair retrieves the match of a (lost, found) pair
func (r *MatchRepository) FindByPair(ctx context.Context, lostReportID, foundReportID string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE lost_report_id = $1 AND found_report_id = $2`

	var row matchRow
	err := r.db.GetContext(ctx, &row, query, lostReportID, foundReportID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return row.toModel(), nil
}

// Insert stores a new match. models.ErrDuplicate is returned when the pair exists.
func (r *MatchRepository) Insert(ctx context.Context, match *models.Match) error {
	query := `
	INSERT INTO matches (` + matchColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		match.ID, match.LostReportID, match.FoundReportID, match.LostOwnerID, match.FoundOwnerID,
		match.Score, string(match.Confidence), string(match.Status),
		JSONB[models.ScoreBreakdown]{Data: match.ScoreBreakdown},
		JSONB[[]models.MatchReason]{Data: nonNilReasons(match.MatchReasons)},
		match.NotificationsSent.Lost, match.NotificationsSent.Found,
		match.CreatedAt, match.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return models.ErrDuplicate
	}
	if err != nil {
		log.Error().Err(err).Str("match_id", match.ID).Msg("Failed to insert match")
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

// UpdateScore writes update only if it beats the stored score
func (r *MatchRepository) UpdateScore(ctx context.Context, id string, update models.ScoreUpdate) (bool, error) {
	query := `
	UPDATE matches SET
		score = $2,
		confidence = $3,
		score_breakdown = $4,
		match_reasons = $5,
		updated_at = $6
	WHERE id = $1 AND score < $2`

	res, err := r.db.ExecContext(ctx, query,
		id, update.Score, string(update.Confidence),
		JSONB[models.ScoreBreakdown]{Data: update.ScoreBreakdown},
		JSONB[[]models.MatchReason]{Data: nonNilReasons(update.MatchReasons)},
		update.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update match score: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ListByReport returns the matches a report takes part in, best first
func (r *MatchRepository) ListByReport(ctx context.Context, reportID string, limit int) ([]*models.Match, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := `SELECT ` + matchColumns + `
	FROM matches
	WHERE lost_report_id = $1 OR found_report_id = $1
	ORDER BY score DESC, created_at DESC
	LIMIT $2`

	var rows []matchRow
	if err := r.db.SelectContext(ctx, &rows, query, reportID, limit); err != nil {
		log.Error().Err(err).Str("report_id", reportID).Msg("Failed to list matches")
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	matches := make([]*models.Match, 0, len(rows))
	for i := range rows {
		matches = append(matches, rows[i].toModel())
	}
	return matches, nil
}

func nonNilReasons(reasons []models.MatchReason) []models.MatchReason {
	if reasons == nil {
		return []models.MatchReason{}
	}
	return reasons
}
