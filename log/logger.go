package log

import "context"

// Fields carries structured key/value pairs attached to a log entry.
type Fields = map[string]interface{}

// Logger is the logging interface used by every component of the portal
// client. Components receive one through an option and default to NewNop.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	Fatal(ctx context.Context, msg string, err error, fields ...Fields) // exits the process
	With(fields Fields) Logger
}

type nopLogger struct{}

// NewNop returns a Logger that discards everything.
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(context.Context, string, ...Fields)        {}
func (nopLogger) Info(context.Context, string, ...Fields)         {}
func (nopLogger) Warn(context.Context, string, ...Fields)         {}
func (nopLogger) Error(context.Context, string, error, ...Fields) {}
func (nopLogger) Fatal(context.Context, string, error, ...Fields) {}
func (n nopLogger) With(Fields) Logger                            { return n }
