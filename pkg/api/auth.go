package api

import (
	"net/http"
	"strings"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// authenticated wraps a handler with the admin API's bearer-token check.
// /health and /metrics are deliberately not wrapped: a monitoring system
// must be able to poll them without a credential.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, apierr.New(apierr.CodeUnauthorized, "missing bearer token"))
			return
		}

		valid, needsRefresh := s.tokens.Validate(token)
		if !valid {
			writeError(w, apierr.New(apierr.CodeUnauthorized, "invalid or expired token"))
			return
		}
		if needsRefresh {
			w.Header().Set("X-Token-Refresh-Recommended", "true")
		}

		next(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
