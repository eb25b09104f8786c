package api

import (
	"net/http"
	"strconv"

	"github.com/cuemby/sentryd/pkg/apierr"
)

var healthMessages = map[apierr.Code]string{
	apierr.CodeServerStarting:         "backend is starting",
	apierr.CodeRestartFailed:          "backend failed to start and requires operator intervention",
	apierr.CodeServerStopped:          "backend is stopped",
	apierr.CodeConfigError:            "frontend configuration is invalid",
	apierr.CodeFactoryResetInProgress: "factory reset in progress",
}

// handleHealth implements GET /health (spec.md §6): 200 "OK" only when
// both frontend and backend are Running(Operational); otherwise the
// degraded-state JSON body with the HTTP status and retry hint spec.md
// §7's state table names, computed by lifecycle.AppState.Health().
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.lifecycle.Snapshot().Health()

	if health.HTTPStatus == http.StatusOK {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	body := errorBody{Code: health.Code, Message: healthMessages[health.Code]}
	if health.RetryAfter > 0 {
		body.RetryAfterSeconds = int(health.RetryAfter.Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	}
	writeJSON(w, health.HTTPStatus, body)
}
