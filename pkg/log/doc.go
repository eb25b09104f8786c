/*
Package log provides structured logging for sentryd using zerolog.

A single global zerolog.Logger is initialized once via Init and used
throughout the module; no package calls fmt.Println or the standard
library log package directly. WithComponent, WithBackup, and WithState
return child loggers carrying a component/backup_id/event field so
callers don't repeat the same Str() calls at every call site.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	backupLog := log.WithBackup(backupID)
	backupLog.Info().Msg("backup created")

	stateLog := log.WithState("reload_frontend")
	stateLog.Error().Err(err).Msg("transition rejected")

# Security

Never log secret material: passwords, OAuth2 client secrets, PGP
private key bytes, or full admin shell command arguments. pkg/adminshell
logs command names only, never arguments, for exactly this reason.
*/
package log
