package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle metrics

	LifecycleState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentryd_lifecycle_state",
			Help: "Current lifecycle state (1 for the active frontend/backend combination, 0 otherwise)",
		},
		[]string{"frontend", "backend"},
	)

	LifecycleTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentryd_lifecycle_transitions_total",
			Help: "Total number of committed lifecycle transitions by event",
		},
		[]string{"event", "outcome"},
	)

	BackendCrashesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentryd_backend_crashes_total",
			Help: "Total number of unexpected backend process exits",
		},
	)

	// Backup metrics

	BackupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentryd_backups_total",
			Help: "Total number of backup create attempts by outcome",
		},
		[]string{"outcome"},
	)

	RestoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentryd_restores_total",
			Help: "Total number of restore attempts by outcome",
		},
		[]string{"outcome"},
	)

	BackupCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentryd_backup_create_duration_seconds",
			Help:    "Time taken to create a backup in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	RestoreDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentryd_restore_duration_seconds",
			Help:    "Time taken to restore a backup in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	BackupBytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentryd_backup_bytes_written_total",
			Help: "Total number of bytes written to the object store across all backups",
		},
	)

	IntegrityCheckOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentryd_integrity_check_outcomes_total",
			Help: "Total number of integrity check verifications by check kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Admin shell metrics

	AdminShellCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentryd_admin_shell_commands_total",
			Help: "Total number of admin shell commands executed by outcome",
		},
		[]string{"outcome"},
	)

	AdminShellRespawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sentryd_admin_shell_respawns_total",
			Help: "Total number of times the admin shell process was respawned after a failure",
		},
	)

	AdminShellCommandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentryd_admin_shell_command_duration_seconds",
			Help:    "Admin shell command execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// HTTP admin API metrics

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentryd_api_requests_total",
			Help: "Total number of admin API requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentryd_api_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(LifecycleState)
	prometheus.MustRegister(LifecycleTransitionsTotal)
	prometheus.MustRegister(BackendCrashesTotal)
	prometheus.MustRegister(BackupsTotal)
	prometheus.MustRegister(RestoresTotal)
	prometheus.MustRegister(BackupCreateDuration)
	prometheus.MustRegister(RestoreDuration)
	prometheus.MustRegister(BackupBytesWritten)
	prometheus.MustRegister(IntegrityCheckOutcomesTotal)
	prometheus.MustRegister(AdminShellCommandsTotal)
	prometheus.MustRegister(AdminShellRespawnsTotal)
	prometheus.MustRegister(AdminShellCommandDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
