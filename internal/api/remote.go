package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// These handlers read straight from the Home Connect API instead of the
// local mirror. Remote failures map through writeRegistryError.

func (s *Server) handleFetchStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.FetchStatus(r.Context(), chi.URLParam(r, "haId"), chi.URLParam(r, "key"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleFetchSetting(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.FetchSetting(r.Context(), chi.URLParam(r, "haId"), chi.URLParam(r, "key"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	s.listPrograms(w, r, false)
}

func (s *Server) handleListAvailablePrograms(w http.ResponseWriter, r *http.Request) {
	s.listPrograms(w, r, true)
}

func (s *Server) listPrograms(w http.ResponseWriter, r *http.Request, available bool) {
	programs, err := s.registry.Programs(r.Context(), chi.URLParam(r, "haId"), available)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"programs": programs})
}

// handleGetAvailableProgram returns one program with its option constraints.
func (s *Server) handleGetAvailableProgram(w http.ResponseWriter, r *http.Request) {
	program, err := s.registry.AvailableProgram(r.Context(), chi.URLParam(r, "haId"), chi.URLParam(r, "key"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (s *Server) handleGetActiveProgram(w http.ResponseWriter, r *http.Request) {
	program, err := s.registry.ActiveProgram(r.Context(), chi.URLParam(r, "haId"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	commands, err := s.registry.Commands(r.Context(), chi.URLParam(r, "haId"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": commands})
}
