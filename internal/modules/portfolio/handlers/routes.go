package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Post("/", h.HandleLoad)             // Assemble posted broker rows
		r.Get("/summary", h.HandleGetSummary) // Current exposure summary
		r.Get("/groups", h.HandleGetGroups)   // Groups and cash-like positions
		r.Post("/refresh", h.HandleRefresh)   // Refresh prices
		r.Post("/simulate", h.HandleSimulate) // Price-shock sweep
		r.Get("/stream", h.HandleStream)      // Summary updates (websocket)
	})
}
