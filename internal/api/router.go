package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homeconnect-core/internal/auth"
)

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket or bearer header, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Group(func(r chi.Router) {
				r.Use(requireScope(auth.ScopeRead))

				r.Get("/metrics", s.handleMetrics)
				r.Post("/auth/ws-ticket", s.handleWSTicket)

				r.Get("/appliances", s.handleListAppliances)
				r.Get("/appliances/{haId}", s.handleGetAppliance)
				r.Get("/appliances/{haId}/properties/{key}", s.handleGetProperty)
				r.Get("/appliances/{haId}/program", s.handleGetProgramActivity)
				r.Get("/appliances/{haId}/status/{key}", s.handleFetchStatus)
				r.Get("/appliances/{haId}/settings/{key}", s.handleFetchSetting)
				r.Get("/appliances/{haId}/programs", s.handleListPrograms)
				r.Get("/appliances/{haId}/programs/available", s.handleListAvailablePrograms)
				r.Get("/appliances/{haId}/programs/available/{key}", s.handleGetAvailableProgram)
				r.Get("/appliances/{haId}/programs/active", s.handleGetActiveProgram)
				r.Get("/appliances/{haId}/commands", s.handleListCommands)
				r.Get("/appliances/{haId}/history", s.handleGetHistory)
				r.Get("/audit", s.handleListAudit)
			})

			// Routes are registered flat: chi cannot mount two subrouters on
			// the same prefix from sibling groups.
			r.Group(func(r chi.Router) {
				r.Use(requireScope(auth.ScopeControl))

				r.Put("/appliances/{haId}/properties/{key}", s.handleSetProperty)
				r.Put("/appliances/{haId}/programs/selected", s.handleSelectProgram)
				r.Put("/appliances/{haId}/programs/active", s.handleStartProgram)
				r.Delete("/appliances/{haId}/programs/active", s.handleStopProgram)
				r.Put("/appliances/{haId}/commands/{key}", s.handleExecuteCommand)
				r.Post("/appliances/{haId}/program/run", s.handleRunProgram)
				r.Post("/appliances/{haId}/program/pause", s.handlePauseProgram)
				r.Put("/appliances/{haId}/power", s.handleSetPower)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
