// Package audit keeps a local trail of session changes.
//
// Attach subscribes to a session.Store and writes one Event per login,
// token refresh, identity update and logout. Tokens are never written.
// FileLogger stores the trail as JSON lines and rotates it with
// lumberjack:
//
//	logger, err := audit.NewFileLogger(audit.FileLoggerConfig{Path: path})
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//	detach := audit.Attach(store, logger, log)
//	defer detach()
package audit
