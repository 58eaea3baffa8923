package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/audit"
)

const auditWriteTimeout = 5 * time.Second

// recordCommand writes one audit entry for a command handled by the API.
// A failed write is logged; the command result stands.
func (s *Server) recordCommand(r *http.Request, action, haID, key string, err error) {
	if s.audit == nil {
		return
	}

	subject := ""
	if claims := claimsFromContext(r.Context()); claims != nil {
		subject = claims.Subject
	}
	e := audit.NewEntry(audit.SourceAPI, action, haID, key, subject, err)
	if id, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
		e.Details = map[string]any{"request_id": id}
	}

	// The request context may already be cancelled by a client hang-up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditWriteTimeout)
	defer cancel()
	if aErr := s.audit.Create(ctx, e); aErr != nil {
		s.logger.Warn("recording command audit failed", "ha_id", haID, "action", action, "error", aErr)
	}
}

// handleListAudit returns audited commands, newest first.
// Query parameters: ha_id, action, source, limit and offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command audit is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		HaID:   q.Get("ha_id"),
		Action: q.Get("action"),
		Source: q.Get("source"),
	}
	var ok bool
	if filter.Limit, ok = queryInt(w, q.Get("limit"), "limit", 1); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, q.Get("offset"), "offset", 0); !ok {
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command audit", "error", err)
		writeInternalError(w, "failed to read command audit")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an optional integer parameter of at least minimum.
// It writes a 400 itself when it returns false.
func queryInt(w http.ResponseWriter, raw, name string, minimum int) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minimum {
		writeBadRequest(w, name+" must be an integer of at least "+strconv.Itoa(minimum))
		return 0, false
	}
	return n, true
}
