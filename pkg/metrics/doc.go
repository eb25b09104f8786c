/*
Package metrics provides Prometheus metrics collection and exposition for
sentryd.

The metrics package defines and registers all sentryd metrics using the
Prometheus client library: lifecycle state, backup/restore outcomes and
durations, integrity check results, admin shell command outcomes, and
admin API request counts and latency. Metrics are exposed over HTTP for
scraping by a Prometheus server.

# Metrics Catalog

Lifecycle:

	sentryd_lifecycle_state{frontend,backend}   gauge, 1 for the active combination
	sentryd_lifecycle_transitions_total{event,outcome}   counter
	sentryd_backend_crashes_total   counter

Backup and restore:

	sentryd_backups_total{outcome="ok|failed"}   counter
	sentryd_restores_total{outcome="ok|failed"}   counter
	sentryd_backup_create_duration_seconds   histogram
	sentryd_restore_duration_seconds   histogram
	sentryd_backup_bytes_written_total   counter
	sentryd_integrity_check_outcomes_total{kind,outcome}   counter

Admin shell:

	sentryd_admin_shell_commands_total{outcome}   counter
	sentryd_admin_shell_respawns_total   counter
	sentryd_admin_shell_command_duration_seconds   histogram

Admin API:

	sentryd_api_requests_total{method,path,status}   counter
	sentryd_api_request_duration_seconds{method,path}   histogram

# Usage

	import "github.com/cuemby/sentryd/pkg/metrics"

	timer := metrics.NewTimer()
	_, err := backupService.CreateBackup(ctx, description, frontendTar)
	timer.ObserveDuration(metrics.BackupCreateDuration)
	if err != nil {
		metrics.BackupsTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.BackupsTotal.WithLabelValues("ok").Inc()
	}

	http.Handle("/metrics", metrics.Handler())

# Collector

Collector mirrors the habit of snapshotting cluster state into gauges on
a fixed interval rather than updating them inline on every lifecycle
transition: it reads lifecycle.Supervisor.Snapshot() every 15 seconds and
sets sentryd_lifecycle_state accordingly, clearing the previous
combination's gauge value so stale labels read 0 rather than lingering
at 1.

# Health

health.go is a standalone component health registry (HealthChecker)
independent of the Prometheus registry above: components (lifecycle,
backend, api) register their health, and GetHealth/GetReadiness answer
aggregate questions an HTTP handler can use to set a 503 when a critical
component, such as the backend process, is unavailable.
*/
package metrics
