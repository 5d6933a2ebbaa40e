package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/matching"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/metrics"
	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

// DefaultEmbeddingTimeout bounds a single embedding request
const DefaultEmbeddingTimeout = 5 * time.Second

// EmbeddingService handles communication with the text embedding service
type EmbeddingService struct {
	endpoint string
	client   *http.Client
}

// NewEmbeddingService creates a new embedding client
func NewEmbeddingService(endpoint string, timeout time.Duration) *EmbeddingService {
	if endpoint == "" {
		endpoint = "http://localhost:8000"
	}
	if timeout <= 0 {
		timeout = DefaultEmbeddingTimeout
	}

	return &EmbeddingService{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// EmbedRequest is the body of POST /embed
type EmbedRequest struct {
	Text string `json:"text"`
}

// EmbedResponse is the success body of POST /embed
type EmbedResponse struct {
	Embedding []float64 `json:"embedding"`
	Dimension int       `json:"dimension,omitempty"`
}

// Embed returns the embedding of a report's text, or nil if the service
// could not produce one. Failures are logged, never returned.
func (e *EmbeddingService) Embed(ctx context.Context, report *models.Report) []float64 {
	start := time.Now()
	embedding, err := e.EmbedText(ctx, ReportText(report))
	metrics.EmbeddingRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		log.Warn().
			Err(err).
			Str("report_id", report.ID).
			Msg("Embedding unavailable, matching without it")
		return nil
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("success").Inc()
	log.Debug().
		Str("report_id", report.ID).
		Int("dimension", len(embedding)).
		Msg("Report embedded")
	return embedding
}

// EmbedText calls the embedding service once. Every failure wraps
// matching.ErrUpstreamUnavailable.
func (e *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float64, error) {
	jsonBody, err := json.Marshal(EmbedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/embed", e.endpoint),
		bytes.NewBuffer(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w: %w", matching.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w: %w", matching.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w: %w", matching.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service returned status %d: %w", resp.StatusCode, matching.ErrUpstreamUnavailable)
	}

	var embedResp EmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w: %w", matching.ErrUpstreamUnavailable, err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response: %w", matching.ErrUpstreamUnavailable)
	}
	if embedResp.Dimension != 0 && embedResp.Dimension != len(embedResp.Embedding) {
		return nil, fmt.Errorf("embedding has %d values, service reported %d: %w",
			len(embedResp.Embedding), embedResp.Dimension, matching.ErrUpstreamUnavailable)
	}

	return embedResp.Embedding, nil
}

// ReportText joins title, description, brand, model and color with single spaces
func ReportText(report *models.Report) string {
	parts := []string{
		report.Title,
		report.Description,
		report.Attributes.Brand,
		report.Attributes.Model,
		report.Attributes.Color,
	}

	present := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			present = append(present, p)
		}
	}
	return strings.Join(present, " ")
}

// HealthCheck verifies the embedding service is configured
func (e *EmbeddingService) HealthCheck(ctx context.Context) error {
	if e.endpoint == "" {
		return fmt.Errorf("embedding service endpoint not configured")
	}
	return nil
}
