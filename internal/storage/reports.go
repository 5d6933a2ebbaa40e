package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

var reportColumns = []string{
	"id", "kind", "owner_id", "title", "description", "category",
	"attributes", "location", "event_date", "embedding", "linked_candidates",
	"status", "created_at", "updated_at",
}

type reportRow struct {
	ID               string                          `db:"id"`
	Kind             string                          `db:"kind"`
	OwnerID          string                          `db:"owner_id"`
	Title            string                          `db:"title"`
	Description      string                          `db:"description"`
	Category         string                          `db:"category"`
	Attributes       JSONB[models.Attributes]        `db:"attributes"`
	Location         JSONB[models.Location]          `db:"location"`
	EventDate        sql.NullTime                    `db:"event_date"`
	Embedding        pq.Float64Array                 `db:"embedding"`
	LinkedCandidates JSONB[[]models.LinkedCandidate] `db:"linked_candidates"`
	Status           string                          `db:"status"`
	CreatedAt        time.Time                       `db:"created_at"`
	UpdatedAt        time.Time                       `db:"updated_at"`
}

func (r *reportRow) toModel() *models.Report {
	report := &models.Report{
		ID:               r.ID,
		Kind:             models.ReportKind(r.Kind),
		OwnerID:          r.OwnerID,
		Title:            r.Title,
		Description:      r.Description,
		Category:         r.Category,
		Attributes:       r.Attributes.Data,
		Location:         r.Location.Data,
		Embedding:        []float64(r.Embedding),
		LinkedCandidates: r.LinkedCandidates.Data,
		Status:           models.ReportStatus(r.Status),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.EventDate.Valid {
		t := r.EventDate.Time
		report.EventDate = &t
	}
	if report.LinkedCandidates == nil {
		report.LinkedCandidates = []models.LinkedCandidate{}
	}
	return report
}

// ReportRepository is the Postgres report store
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// FindByID retrieves a report by ID
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE id = $1`, strings.Join(reportColumns, ", "))

	var row reportRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("report_id", id).Msg("Failed to get report from postgres")
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return row.toModel(), nil
}

// FindCandidates returns reports matching the query, newest first
func (r *ReportRepository) FindCandidates(ctx context.Context, q models.CandidateQuery) ([]*models.Report, error) {
	query, args := buildCandidateQuery(q)

	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		log.Error().Err(err).Str("category", q.Category).Msg("Failed to query candidate reports")
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}

	reports := make([]*models.Report, 0, len(rows))
	for i := range rows {
		reports = append(reports, rows[i].toModel())
	}
	return reports, nil
}

func buildCandidateQuery(q models.CandidateQuery) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reportColumns...)
	sb.From("reports")
	sb.Where(
		sb.Equal("kind", string(q.Kind)),
		sb.Equal("status", string(q.Status)),
		sb.Equal("category", q.Category),
	)
	if q.ExcludeID != "" {
		sb.Where(sb.NotEqual("id", q.ExcludeID))
	}
	sb.OrderBy("created_at DESC", "id")
	if q.Limit > 0 {
		sb.Limit(q.Limit)
	}
	return sb.Build()
}

// SetEmbedding caches a report's embedding
func (r *ReportRepository) SetEmbedding(ctx context.Context, id string, embedding []float64) error {
	query := `UPDATE reports SET embedding = $2, updated_at = NOW() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, pq.Float64Array(embedding))
	if err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}
	return requireAffected(res)
}

// AppendLinkedCandidate appends a backlink in one statement. A link to the
// same counterpart that is already present is left as is.
func (r *ReportRepository) AppendLinkedCandidate(ctx context.Context, id string, link models.LinkedCandidate) error {
	element, err := json.Marshal([]models.LinkedCandidate{link})
	if err != nil {
		return fmt.Errorf("failed to marshal linked candidate: %w", err)
	}

	query := `
	UPDATE reports
	SET linked_candidates = linked_candidates || $2::jsonb,
		updated_at = NOW()
	WHERE id = $1
	  AND NOT linked_candidates @> jsonb_build_array(jsonb_build_object('report_id', $3::text))`

	res, err := r.db.ExecContext(ctx, query, id, string(element), link.ReportID)
	if err != nil {
		return fmt.Errorf("failed to append linked candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Either the report is missing or the link already exists.
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check report: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return nil
}

// Save creates or replaces a report
func (r *ReportRepository) Save(ctx context.Context, report *models.Report) error {
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now
	if report.Status == "" {
		report.Status = models.ReportStatusActive
	}
	links := report.LinkedCandidates
	if links == nil {
		links = []models.LinkedCandidate{}
	}

	var eventDate sql.NullTime
	if report.EventDate != nil {
		eventDate = sql.NullTime{Time: *report.EventDate, Valid: true}
	}
	var embedding pq.Float64Array
	if len(report.Embedding) > 0 {
		embedding = pq.Float64Array(report.Embedding)
	}

	query := fmt.Sprintf(`
	INSERT INTO reports (%s)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (id) DO UPDATE SET
		owner_id = EXCLUDED.owner_id,
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		category = EXCLUDED.category,
		attributes = EXCLUDED.attributes,
		location = EXCLUDED.location,
		event_date = EXCLUDED.event_date,
		embedding = EXCLUDED.embedding,
		linked_candidates = EXCLUDED.linked_candidates,
		status = EXCLUDED.status,
		updated_at = EXCLUDED.updated_at`, strings.Join(reportColumns, ", "))

	_, err := r.db.ExecContext(ctx, query,
		report.ID, string(report.Kind), report.OwnerID, report.Title, report.Description, report.Category,
		JSONB[models.Attributes]{Data: report.Attributes},
		JSONB[models.Location]{Data: report.Location},
		eventDate, embedding,
		JSONB[[]models.LinkedCandidate]{Data: links},
		string(report.Status), report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		log.Error().Err(err).Str("report_id", report.ID).Msg("Failed to save report to postgres")
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
