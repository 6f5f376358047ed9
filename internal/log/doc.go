// Package log builds the application's slog loggers.
//
// Every logger goes through SecureHandler, which masks password-like
// attributes before they are written. The PDF export options carry an
// optional user password and tool argument vectors are logged at debug
// level, so masking happens in the handler rather than at each call site.
//
//	logger := log.NewSecureLogger(os.Stderr, log.Options{Verbose: true})
//	logger.Debug("export", "user-password", pw) // user-password=***REDACTED***
package log
