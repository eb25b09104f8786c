/*
Package health provides liveness checkers (TCP, HTTP, exec) against a
small Checker interface, and a Status type that turns a stream of
individual check results into a debounced healthy/unhealthy verdict
using a consecutive-failure threshold; a single success marks the status
healthy again.

sentryd's only consumer is pkg/prosody.Supervisor: it uses a TCPChecker
against the backend's ready_address to decide when Start has finished
bringing the process up, polling on a short interval until ready_timeout
elapses. HTTPChecker and ExecChecker exist for the same Checker contract
and are available to future readiness probes without needing their own
polling loop.

# Usage

	checker := health.NewTCPChecker("127.0.0.1:5347").WithTimeout(5 * time.Second)
	result := checker.Check(ctx)
	if result.Healthy {
		// backend accepted a connection
	}

Status turns repeated results into a single verdict:

	status := health.NewStatus()
	status.Update(checker.Check(ctx), health.DefaultConfig())
	if status.Healthy {
		// fewer than config.Retries consecutive failures so far
	}
*/
package health
