package lifecycle

// Event names one of the events spec.md §4.6's transition table accepts.
type Event int

const (
	EventBootstrap Event = iota
	EventReloadFrontend
	EventReloadBackend
	EventRestartBackend
	EventStartBackend
	EventRetryStart
	EventFactoryReset
)

func (e Event) String() string {
	switch e {
	case EventBootstrap:
		return "bootstrap"
	case EventReloadFrontend:
		return "reload_frontend"
	case EventReloadBackend:
		return "reload_backend"
	case EventRestartBackend:
		return "restart_backend"
	case EventStartBackend:
		return "start_backend"
	case EventRetryStart:
		return "retry_start"
	case EventFactoryReset:
		return "factory_reset"
	default:
		return "unknown"
	}
}

// Admissible reports whether s admits e, per spec.md §4.6's transition
// table. Every event not explicitly matched here is rejected: the table
// says "all other combinations are rejected with PreconditionFailed".
func Admissible(s AppState, e Event) bool {
	switch e {
	case EventBootstrap:
		return s.Backend == BackendNotInitialized
	case EventReloadFrontend:
		return true
	case EventReloadBackend, EventRestartBackend, EventFactoryReset:
		return s.Frontend == FrontendRunning && s.Backend == BackendRunning
	case EventStartBackend:
		return s.Frontend == FrontendRunning && s.Backend == BackendStarting
	case EventRetryStart:
		return s.Frontend == FrontendRunning && s.Backend == BackendStartFailed
	default:
		return false
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// BootstrapOutcome computes the post-state of a bootstrap attempt.
// configInvalid distinguishes the table's CONFIG_ERROR branch from its
// generic start-failure branch.
func BootstrapOutcome(ok, configInvalid bool, err error) AppState {
	if ok {
		return AppState{Frontend: FrontendRunning, FrontendSub: FrontendSubOperational, Backend: BackendRunning, BackendSub: BackendSubOperational}
	}
	if configInvalid {
		return AppState{Frontend: FrontendMisconfigured, FrontendError: errString(err), Backend: BackendStopped, BackendSub: BackendSubNotInitialized}
	}
	return AppState{Frontend: FrontendRunning, FrontendSub: FrontendSubOperational, Backend: BackendStartFailed, BackendSub: BackendSubNotInitialized, BackendError: errString(err)}
}

// ReloadFrontendOutcome computes the post-state of a reload_frontend
// attempt; it leaves Backend untouched except for the any-state bootstrap
// retry handled separately by the supervisor.
func ReloadFrontendOutcome(s AppState, ok bool, err error) AppState {
	next := s
	if ok {
		next.Frontend = FrontendRunning
		next.FrontendSub = FrontendSubOperational
		next.FrontendError = ""
		return next
	}
	next.Frontend = FrontendRunning
	next.FrontendSub = FrontendSubWithMisconfiguration
	next.FrontendError = errString(err)
	return next
}

// RestartBackendOutcome computes the post-state of a restart_backend
// attempt.
func RestartBackendOutcome(s AppState, ok bool, err error) AppState {
	if ok {
		return AppState{Frontend: s.Frontend, FrontendSub: s.FrontendSub, Backend: BackendRunning, BackendSub: BackendSubOperational}
	}
	return AppState{Frontend: s.Frontend, FrontendSub: s.FrontendSub, Backend: BackendStartFailed, BackendSub: BackendSubOperational, BackendError: errString(err)}
}

// StartBackendOutcome computes the post-state of a start_backend attempt
// from (Running, Starting).
func StartBackendOutcome(ok bool, err error) AppState {
	if ok {
		return AppState{Frontend: FrontendRunning, FrontendSub: FrontendSubOperational, Backend: BackendRunning, BackendSub: BackendSubOperational}
	}
	return AppState{Frontend: FrontendRunning, FrontendSub: FrontendSubOperational, Backend: BackendStartFailed, BackendSub: BackendSubNotInitialized, BackendError: errString(err)}
}

// RetryStartOutcome computes the post-state of a retry_start attempt from
// (Running, StartFailed{sub,_}); sub is carried through unchanged on
// another failure.
func RetryStartOutcome(s AppState, ok bool, err error) AppState {
	if ok {
		return AppState{Frontend: s.Frontend, FrontendSub: s.FrontendSub, Backend: BackendRunning, BackendSub: BackendSubOperational}
	}
	return AppState{Frontend: s.Frontend, FrontendSub: s.FrontendSub, Backend: BackendStartFailed, BackendSub: s.BackendSub, BackendError: errString(err)}
}

// FactoryResetOutcome computes the post-state of a factory_reset attempt.
// Per Invariant S2, factory reset always terminates in (Misconfigured,
// Stopped(NotInitialized)) and may never transition back to Running
// without a subsequent, separately-admitted bootstrap call.
func FactoryResetOutcome(err error) AppState {
	return AppState{Frontend: FrontendMisconfigured, FrontendError: errString(err), Backend: BackendStopped, BackendSub: BackendSubNotInitialized}
}
