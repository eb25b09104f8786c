// Package prosody supervises the backend XMPP server process: starting,
// stopping, reloading and restarting it via os/exec, waiting for it to
// become reachable, and routing its output into the structured logger one
// line at a time. It owns no policy about when these operations are
// admissible; that belongs to the lifecycle state machine that calls it.
package prosody
