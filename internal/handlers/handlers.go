package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/odnalezione-zguby/service-m-matcher/internal/models"
)

// MatchTrigger starts a detached match search
type MatchTrigger interface {
	TriggerMatchSearch(reportID string)
}

// ReportFinder looks up reports before a trigger is accepted
type ReportFinder interface {
	FindByID(ctx context.Context, id string) (*models.Report, error)
}

// MatchLister lists the matches of a report
type MatchLister interface {
	ListByReport(ctx context.Context, reportID string, limit int) ([]*models.Match, error)
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Handler contains all HTTP handlers
type Handler struct {
	trigger MatchTrigger
	reports ReportFinder
	matches MatchLister
	checks  map[string]HealthCheck
}

// NewHandler creates a new handler instance
func NewHandler(trigger MatchTrigger, reports ReportFinder, matches MatchLister, checks map[string]HealthCheck) *Handler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &Handler{
		trigger: trigger,
		reports: reports,
		matches: matches,
		checks:  checks,
	}
}

// Register mounts the handler routes on r
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/reports/{id}/match", h.TriggerMatchHandler).Methods("POST")
	api.HandleFunc("/reports/{id}/matches", h.ListMatchesHandler).Methods("GET")
	api.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
}

// TriggerMatchHandler schedules a match search for an existing report
func (h *Handler) TriggerMatchHandler(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	if _, err := h.reports.FindByID(r.Context(), reportID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		log.Error().Err(err).Str("report_id", reportID).Msg("Failed to look up report")
		writeError(w, http.StatusInternalServerError, "failed to look up report")
		return
	}

	h.trigger.TriggerMatchSearch(reportID)

	log.Info().Str("report_id", reportID).Msg("Match search triggered via API")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"report_id": reportID,
	})
}

// ListMatchesHandler returns a report's matches, best score first
func (h *Handler) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	matches, err := h.matches.ListByReport(r.Context(), reportID, limit)
	if err != nil {
		log.Error().Err(err).Str("report_id", reportID).Msg("Failed to list matches")
		writeError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}
	if matches == nil {
		matches = []*models.Match{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"report_id": reportID,
		"count":     len(matches),
		"matches":   matches,
	})
}

// HealthCheckHandler returns health status
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = "unhealthy"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
