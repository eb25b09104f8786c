package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/log"
)

// errorBody is spec.md's degraded-response JSON shape, extended (per
// SPEC_FULL.md §3) with an optional retry hint.
type errorBody struct {
	Code              apierr.Code `json:"code"`
	Message           string      `json:"message"`
	Description       string      `json:"description,omitempty"`
	CorrelationID     string      `json:"correlation_id,omitempty"`
	RetryAfterSeconds int         `json:"retry_after_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates err into the admin API's error JSON shape. A
// plain error (not *apierr.Error) is treated as INTERNAL_ERROR so the
// caller never sees a raw Go error string. An INTERNAL_ERROR is logged
// with its full cause under the correlation ID returned to the caller.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierr.Internal(err)
	}
	if apiErr.Code == apierr.CodeInternalError {
		log.WithComponent("api").Error().Err(err).
			Str("correlation_id", apiErr.CorrelationID).Msg("internal error")
	}

	writeJSON(w, apierr.HTTPStatus(apiErr.Code), errorBody{
		Code:          apiErr.Code,
		Message:       apiErr.Message,
		Description:   apiErr.Description,
		CorrelationID: apiErr.CorrelationID,
	})
}
