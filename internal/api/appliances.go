package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
	"github.com/nerrad567/homeconnect-core/internal/audit"
	"github.com/nerrad567/homeconnect-core/internal/registry"
	"github.com/nerrad567/homeconnect-core/internal/stream"
)

// applianceResponse is a snapshot plus the health of its event stream.
type applianceResponse struct {
	appliance.Snapshot
	Stream *stream.Stats `json:"stream,omitempty"`
}

type setPropertyRequest struct {
	Value json.RawMessage `json:"value"`
	Unit  string          `json:"unit,omitempty"`
}

type optionRequest struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Unit  string          `json:"unit,omitempty"`
}

type programRequest struct {
	Key     string          `json:"key"`
	Options []optionRequest `json:"options,omitempty"`
}

// records decodes option values with appliance number handling, so
// integers stay int64.
func (p programRequest) records() ([]appliance.Record, error) {
	if len(p.Options) == 0 {
		return nil, nil
	}
	out := make([]appliance.Record, 0, len(p.Options))
	for _, o := range p.Options {
		if o.Key == "" {
			return nil, errors.New("option key is required")
		}
		v, err := appliance.DecodeValue(o.Value)
		if len(o.Value) == 0 || err != nil || v == nil {
			return nil, fmt.Errorf("option %s: value is required", o.Key)
		}
		out = append(out, appliance.Record{Key: o.Key, Value: v, Unit: o.Unit})
	}
	return out, nil
}

type powerRequest struct {
	On *bool `json:"on"`
}

// handleListAppliances returns a snapshot of every registered appliance.
func (s *Server) handleListAppliances(w http.ResponseWriter, _ *http.Request) {
	states := s.registry.Appliances()
	snaps := make([]appliance.Snapshot, 0, len(states))
	for _, st := range states {
		snaps = append(snaps, st.Snapshot())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"appliances": snaps,
		"count":      len(snaps),
	})
}

func (s *Server) handleGetAppliance(w http.ResponseWriter, r *http.Request) {
	haID := chi.URLParam(r, "haId")
	snap, err := s.registry.Snapshot(haID)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	resp := applianceResponse{Snapshot: snap}
	if st, ok := s.registry.Stats()[haID]; ok {
		resp.Stream = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.GetProperty(chi.URLParam(r, "haId"), chi.URLParam(r, "key"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleGetProgramActivity answers running, idle or unknown.
func (s *Server) handleGetProgramActivity(w http.ResponseWriter, r *http.Request) {
	haID := chi.URLParam(r, "haId")
	activity, err := s.registry.ProgramRunning(haID)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ha_id":  haID,
		"status": activity,
	})
}

func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	var req setPropertyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	value, err := appliance.DecodeValue(req.Value)
	if len(req.Value) == 0 || err != nil || value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	haID, key := chi.URLParam(r, "haId"), chi.URLParam(r, "key")
	err = s.registry.SetProperty(r.Context(), haID, key, value, req.Unit)
	s.writeCommandResult(w, r, audit.ActionSetProperty, haID, key, err)
}

func (s *Server) handleSelectProgram(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeBadRequest(w, "key is required")
		return
	}
	options, err := req.records()
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	haID := chi.URLParam(r, "haId")
	s.writeCommandResult(w, r, audit.ActionSelectProgram, haID, req.Key, s.registry.SelectProgram(r.Context(), haID, req.Key, options))
}

func (s *Server) handleStartProgram(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeBadRequest(w, "key is required")
		return
	}
	options, err := req.records()
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	haID := chi.URLParam(r, "haId")
	s.writeCommandResult(w, r, audit.ActionStartProgram, haID, req.Key, s.registry.StartProgram(r.Context(), haID, req.Key, options))
}

func (s *Server) handleStopProgram(w http.ResponseWriter, r *http.Request) {
	haID := chi.URLParam(r, "haId")
	s.writeCommandResult(w, r, audit.ActionStopProgram, haID, "", s.registry.StopActiveProgram(r.Context(), haID))
}

func (s *Server) handleExecuteCommand(w http.ResponseWriter, r *http.Request) {
	haID, key := chi.URLParam(r, "haId"), chi.URLParam(r, "key")
	s.writeCommandResult(w, r, audit.ActionExecuteCommand, haID, key, s.registry.ExecuteCommand(r.Context(), haID, key))
}

// handleRunProgram starts the selected program, or resumes a paused one.
func (s *Server) handleRunProgram(w http.ResponseWriter, r *http.Request) {
	haID := chi.URLParam(r, "haId")
	s.writeCommandResult(w, r, audit.ActionRun, haID, "", s.registry.RunProgram(r.Context(), haID))
}

func (s *Server) handlePauseProgram(w http.ResponseWriter, r *http.Request) {
	haID := chi.URLParam(r, "haId")
	s.writeCommandResult(w, r, audit.ActionPause, haID, "", s.registry.PauseProgram(r.Context(), haID))
}

func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.On == nil {
		writeBadRequest(w, "on is required")
		return
	}
	haID := chi.URLParam(r, "haId")
	s.writeCommandResult(w, r, audit.ActionPower, haID, "", s.registry.SetPower(r.Context(), haID, *req.On))
}

// writeCommandResult audits the command and answers 202: the appliance
// confirms a command through its event stream, not the REST response.
func (s *Server) writeCommandResult(w http.ResponseWriter, r *http.Request, action, haID, key string, err error) {
	s.recordCommand(r, action, haID, key, err)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// decodeBody writes a 400 itself when it returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeBadRequest(w, "request body is required")
		} else {
			writeBadRequest(w, "invalid JSON body")
		}
		return false
	}
	return true
}

var _ Registry = (*registry.Registry)(nil)
