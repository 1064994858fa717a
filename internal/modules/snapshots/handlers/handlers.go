// Package handlers provides HTTP handlers for summary snapshots.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/internal/modules/snapshots"
)

// SummarySource provides the currently loaded summary.
type SummarySource interface {
	Summary() (domain.PortfolioSummary, bool)
}

// Handler handles snapshot HTTP requests
type Handler struct {
	repo    *snapshots.Repository
	summary SummarySource
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(repo *snapshots.Repository, summary SummarySource, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		summary: summary,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleList handles GET /api/snapshots
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	infos, err := h.repo.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		h.writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": infos,
		"count":     len(infos),
	})
}

// HandleGet handles GET /api/snapshots/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := h.repo.Get(id)
	if errors.Is(err, snapshots.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get snapshot")
		h.writeError(w, http.StatusInternalServerError, "failed to get snapshot")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         snap.ID,
		"source":     snap.Source,
		"created_at": snap.CreatedAt,
		"summary":    snap.Summary.ToMap(),
	})
}

// HandleCreate handles POST /api/snapshots, saving the current summary.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summary.Summary()
	if !ok {
		h.writeError(w, http.StatusNotFound, "no portfolio loaded")
		return
	}

	id, err := h.repo.Save(summary, "manual")
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to save snapshot")
		h.writeError(w, http.StatusInternalServerError, "failed to save snapshot")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
