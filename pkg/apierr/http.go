package apierr

import "net/http"

// HTTPStatus maps a Code to the HTTP status the admin API answers with.
// Lifecycle-state-derived responses use lifecycle.AppState.Health()
// instead, which encodes spec.md §7's state table directly; this mapping
// covers every other error the backup/admin-shell/config layers return.
func HTTPStatus(code Code) int {
	switch code {
	case CodeConfigError:
		return http.StatusBadRequest
	case CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case CodeMissingFile, CodeUnreadable:
		return http.StatusUnprocessableEntity
	case CodeIntegrityCheckMissing, CodeIntegrityCheckMalformed, CodeIntegrityCheckFailed, CodeIntegrityDivergent:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeCommandTooLong, CodeCommandEmpty:
		return http.StatusBadRequest
	case CodeCommandTimeout:
		return http.StatusGatewayTimeout
	case CodeShellError, CodeShellUnexpected:
		return http.StatusBadGateway
	case CodeInternalError:
		return http.StatusInternalServerError
	default:
		// CANNOT_*, *_FAILED writer-chain codes: setup or mid-stream
		// failures in the backup engine itself, not a client mistake.
		return http.StatusInternalServerError
	}
}
