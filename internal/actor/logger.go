package actor

// Logger defines the logging interface used by the actor system.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// pathLogger prefixes every entry with the actor path.
type pathLogger struct {
	base Logger
	path string
}

func (l pathLogger) with(args []any) []any {
	return append([]any{"actor", l.path}, args...)
}

func (l pathLogger) Debug(msg string, args ...any) { l.base.Debug(msg, l.with(args)...) }
func (l pathLogger) Info(msg string, args ...any)  { l.base.Info(msg, l.with(args)...) }
func (l pathLogger) Warn(msg string, args ...any)  { l.base.Warn(msg, l.with(args)...) }
func (l pathLogger) Error(msg string, args ...any) { l.base.Error(msg, l.with(args)...) }
