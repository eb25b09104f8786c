/*
Package api implements sentryd's admin HTTP API: health, lifecycle
control (frontend reload, factory reset, backend reload/restart), and
backup/restore, all served over plain net/http on the address
config.Config.Server's HTTPPort names.

# Endpoints

	GET  /health                     200 OK plain text, or a degraded
	                                  JSON body per lifecycle.AppState.Health
	GET  /metrics                    Prometheus exposition
	GET  /healthz, /readyz, /livez   component-registry health, for
	                                  operators who want per-component detail
	                                  rather than the single lifecycle verdict

	POST /lifecycle/reload           re-read frontend configuration
	POST /lifecycle/factory-reset    wipe backend state to first boot
	POST /prosody/reload             signal the backend to reload config
	POST /prosody/restart            stop and respawn the backend

	POST /backups                    create a backup from the request body
	GET  /backups                    list backup metadata
	GET  /backups/{id}               metadata for one backup
	POST /backups/{id}/restore       restore a backup to a destination path

Every route but /health, /metrics, /healthz, /readyz and /livez requires
a bearer token validated against secrets.TokenCache; a monitoring system
must be able to poll health and metrics without a credential.

# Errors

Handlers translate a returned error into JSON via writeError: an
*apierr.Error keeps its code, message, description and correlation ID;
any other error is wrapped as apierr.CodeInternalError so a caller never
sees a raw Go error string. apierr.HTTPStatus maps each code to the
status the body is written with.
*/
package api
