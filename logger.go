package stagerun

// Logger defines the interface for scheduler logging.
// The scheduler uses structured logging with key-value pairs so hosts can
// plug in whatever structured logger they already run. The method set is
// deliberately slog-shaped: a *slog.Logger satisfies it directly, and
// logrus/zap sugar adapters are one-liners.
//
//	logger.Info("stage inserted", "stage", "physics", "frequency", 60)
type Logger interface {
	// Info logs normal scheduler events: startup, shutdown, applied commands.
	Info(msg string, args ...any)

	// Error logs failures that the run loop absorbs rather than propagates,
	// such as an operation returning an error mid-pass.
	Error(msg string, args ...any)

	// Warn logs unusual but non-fatal conditions, like a config file naming
	// a stage that does not exist.
	Warn(msg string, args ...any)

	// Debug logs per-iteration detail, typically disabled in production.
	Debug(msg string, args ...any)
}
