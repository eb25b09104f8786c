package api

import (
	"net/http"
	"time"

	"github.com/cuemby/sentryd/pkg/backup"
	"github.com/cuemby/sentryd/pkg/config"
	"github.com/cuemby/sentryd/pkg/lifecycle"
	"github.com/cuemby/sentryd/pkg/log"
	"github.com/cuemby/sentryd/pkg/metrics"
	"github.com/cuemby/sentryd/pkg/secrets"
)

// Server is sentryd's admin HTTP API (spec.md §6): health, lifecycle
// control, and backup/restore, all gated by the lifecycle state machine
// and (outside /health, /metrics, /healthz, /readyz and /livez) a bearer
// token.
type Server struct {
	lifecycle *lifecycle.Supervisor
	backups   *backup.Service
	tokens    *secrets.TokenCache

	mux *http.ServeMux
}

// NewServer wires the admin API against its three collaborators.
func NewServer(sup *lifecycle.Supervisor, backups *backup.Service, tokens *secrets.TokenCache) *Server {
	s := &Server{lifecycle: sup, backups: backups, tokens: tokens}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", metrics.HealthHandler())
	mux.HandleFunc("GET /readyz", metrics.ReadyHandler())
	mux.HandleFunc("GET /livez", metrics.LivenessHandler())

	mux.Handle("POST /lifecycle/reload", s.authenticated(s.handleReloadFrontend))
	mux.Handle("POST /lifecycle/factory-reset", s.authenticated(s.handleFactoryReset))
	mux.Handle("POST /prosody/reload", s.authenticated(s.handleReloadBackend))
	mux.Handle("POST /prosody/restart", s.authenticated(s.handleRestartBackend))

	mux.Handle("POST /backups", s.authenticated(s.handleCreateBackup))
	mux.Handle("GET /backups", s.authenticated(s.handleListBackups))
	mux.Handle("GET /backups/{id}", s.authenticated(s.handleGetBackup))
	mux.Handle("POST /backups/{id}/restore", s.authenticated(s.handleRestoreBackup))

	s.mux = mux
	return s
}

// Handler returns the root http.Handler for embedding in an http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts an http.Server bound to addr until ctx-equivalent shutdown;
// matches the teacher's bare ListenAndServe shape in pkg/api/health.go.
func (s *Server) Run(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// NewServerFromConfig is a convenience constructor mirroring cmd/sentryd's
// wiring order: lifecycle supervisor, backup service, token cache, all
// built from one config.Config.
func NewServerFromConfig(cfg *config.Config, sup *lifecycle.Supervisor, backups *backup.Service, tokens *secrets.TokenCache) *Server {
	log.WithComponent("api").Info().Str("domain", cfg.Server.Domain).Msg("admin API configured")
	return NewServer(sup, backups, tokens)
}
