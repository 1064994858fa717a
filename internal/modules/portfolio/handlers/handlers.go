// Package handlers provides HTTP handlers for the loaded portfolio.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/exposure/internal/domain"
	"github.com/aristath/exposure/internal/modules/exposure"
	"github.com/aristath/exposure/internal/modules/portfolio"
	"github.com/aristath/exposure/internal/modules/simulator"
	"github.com/aristath/exposure/internal/modules/validation"
)

const (
	maxBodyBytes  = 8 << 20
	streamBuffer  = 4
	streamTimeout = 5 * time.Second
)

// Handler handles portfolio HTTP requests
type Handler struct {
	store     *portfolio.Store
	simulator *simulator.Simulator
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(store *portfolio.Store, sim *simulator.Simulator, log zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		simulator: sim,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

// LoadRequest is the body of POST /portfolio: broker rows keyed by column name.
type LoadRequest struct {
	Rows []map[string]string `json:"rows"`
}

// SimulateRequest is the body of POST /portfolio/simulate.
type SimulateRequest struct {
	Changes []float64 `json:"changes"`
}

// HandleLoad assembles the posted rows and makes them the current portfolio.
func (h *Handler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.store.Load(r.Context(), validation.RowsFromMaps(req.Rows))
	if err != nil {
		if portfolio.IsFatal(err) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to load portfolio")
		h.writeError(w, http.StatusInternalServerError, "Failed to load portfolio")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":                result.Summary.ToMap(),
		"groups":                 groupMaps(result.Groups),
		"pending_activity_value": result.PendingActivityValue,
		"skipped":                result.Skipped,
	})
}

// HandleGetSummary returns the current portfolio summary.
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.store.Summary()
	if !ok {
		h.writeError(w, http.StatusNotFound, portfolio.ErrNotLoaded.Error())
		return
	}

	response := summary.ToMap()
	if err := exposure.Reconcile(summary); err != nil {
		h.log.Warn().Err(err).Msg("Summary does not reconcile")
		response["reconcile_error"] = err.Error()
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetGroups returns the current groups and cash-like positions.
func (h *Handler) HandleGetGroups(w http.ResponseWriter, r *http.Request) {
	state, ok := h.store.State()
	if !ok {
		h.writeError(w, http.StatusNotFound, portfolio.ErrNotLoaded.Error())
		return
	}

	cash := make([]map[string]interface{}, 0, len(state.CashLike))
	for _, c := range state.CashLike {
		cash = append(cash, c.ToMap())
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups":    groupMaps(state.Groups),
		"cash_like": cash,
		"skipped":   state.Skipped,
		"loaded_at": state.LoadedAt.Format(time.RFC3339),
	})
}

// HandleRefresh refreshes prices of the current portfolio.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.store.Refresh(r.Context())
	if errors.Is(err, portfolio.ErrNotLoaded) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to refresh prices")
		h.writeError(w, http.StatusInternalServerError, "Failed to refresh prices")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": report.Summary.ToMap(),
		"prices":  report.Prices,
	})
}

// HandleSimulate runs a price-shock sweep over the current portfolio.
func (h *Handler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	state, ok := h.store.State()
	if !ok {
		h.writeError(w, http.StatusNotFound, portfolio.ErrNotLoaded.Error())
		return
	}

	result, err := h.simulator.Simulate(r.Context(), state.Groups, state.CashLike, state.PendingActivityValue, req.Changes)
	if errors.Is(err, simulator.ErrInvalidChange) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Simulation failed")
		h.writeError(w, http.StatusInternalServerError, "Simulation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleStream pushes the current summary and every later one over a websocket.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	updates, unsubscribe := h.store.Subscribe(streamBuffer)
	defer unsubscribe()

	// the client never sends; CloseRead handles control frames and cancels ctx on close
	ctx := conn.CloseRead(r.Context())

	if summary, ok := h.store.Summary(); ok {
		if err := h.send(ctx, conn, summary); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case summary, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "")
				return
			}
			if err := h.send(ctx, conn, summary); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, summary domain.PortfolioSummary) error {
	data, err := json.Marshal(summary.ToMap())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode summary")
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Msg("Stream write failed")
		return err
	}
	return nil
}

func groupMaps(groups []domain.PortfolioGroup) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.ToMap())
	}
	return out
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
