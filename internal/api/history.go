package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleGetHistory returns recorded property changes, newest first.
// Query parameters: key (optional, one property) and limit.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "property history is not enabled")
		return
	}

	haID := chi.URLParam(r, "haId")
	if _, err := s.registry.Snapshot(haID); err != nil {
		s.writeRegistryError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	key := r.URL.Query().Get("key")

	entries, err := s.history.List(r.Context(), haID, key, limit)
	if err != nil {
		s.logger.Error("listing property history", "ha_id", haID, "error", err)
		writeInternalError(w, "failed to read property history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ha_id":   haID,
		"entries": entries,
		"count":   len(entries),
	})
}
