package lifecycle

import (
	"time"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// Health derives the admin API's health response from the current state,
// per spec.md §7's state/HTTP mapping table. An empty Code means the
// healthy 200 case, which carries no error body.
type Health struct {
	HTTPStatus int
	RetryAfter time.Duration
	Code       apierr.Code
}

// Health computes spec.md §7's status-from-state mapping.
func (s AppState) Health() Health {
	if s.Backend == BackendUndergoingFactoryReset || s.Frontend == FrontendUndergoingFactoryReset {
		return Health{HTTPStatus: 503, RetryAfter: 15 * time.Second, Code: apierr.CodeFactoryResetInProgress}
	}
	if s.Frontend == FrontendMisconfigured {
		return Health{HTTPStatus: 400, Code: apierr.CodeConfigError}
	}
	if s.Frontend == FrontendRunning && s.FrontendSub == FrontendSubWithMisconfiguration {
		return Health{HTTPStatus: 400, Code: apierr.CodeConfigError}
	}

	switch s.Backend {
	case BackendRunning:
		return Health{HTTPStatus: 200}
	case BackendStarting:
		return Health{HTTPStatus: 425, RetryAfter: time.Second, Code: apierr.CodeServerStarting}
	case BackendStartFailed:
		return Health{HTTPStatus: 500, Code: apierr.CodeRestartFailed}
	default:
		return Health{HTTPStatus: 503, Code: apierr.CodeServerStopped}
	}
}
