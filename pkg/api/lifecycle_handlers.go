package api

import "net/http"

// handleReloadFrontend implements POST /lifecycle/reload: re-reads the
// frontend configuration and applies it without a full backend restart.
func (s *Server) handleReloadFrontend(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.ReloadFrontend(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFactoryReset implements POST /lifecycle/factory-reset: wipes
// backend state and configuration back to first-boot defaults. Only
// reachable from the states lifecycle.AppState.FactoryResettable names.
func (s *Server) handleFactoryReset(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.FactoryReset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReloadBackend implements POST /prosody/reload: sends the
// backend process its configuration-reload signal without restarting it.
func (s *Server) handleReloadBackend(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.ReloadBackend(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRestartBackend implements POST /prosody/restart: stops and
// respawns the backend process.
func (s *Server) handleRestartBackend(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.RestartBackend(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
