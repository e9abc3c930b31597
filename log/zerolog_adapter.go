package log

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// zerologAdapter implements Logger on top of zerolog.
type zerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a Logger writing to stderr.
func NewZerologAdapter(level zerolog.Level, pretty bool) Logger {
	return NewZerologWriter(os.Stderr, level, pretty)
}

// NewZerologWriter creates a Logger writing to w. When pretty is set the
// output is human readable console text instead of JSON lines.
func NewZerologWriter(w io.Writer, level zerolog.Level, pretty bool) Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &zerologAdapter{logger: zlog}
}

// ParseLevel maps a configuration string to a zerolog level. Unknown values
// fall back to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// emit attaches the active span ids and the extra fields, then writes the event.
func emit(ctx context.Context, event *zerolog.Event, msg string, fields []Fields) {
	if ctx != nil {
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
			event = event.Str("trace_id", sc.TraceID().String()).
				Str("span_id", sc.SpanID().String())
		}
	}
	for _, f := range fields {
		event = event.Fields(f)
	}
	event.Msg(msg)
}

func (z *zerologAdapter) Debug(ctx context.Context, msg string, fields ...Fields) {
	emit(ctx, z.logger.Debug(), msg, fields)
}

func (z *zerologAdapter) Info(ctx context.Context, msg string, fields ...Fields) {
	emit(ctx, z.logger.Info(), msg, fields)
}

func (z *zerologAdapter) Warn(ctx context.Context, msg string, fields ...Fields) {
	emit(ctx, z.logger.Warn(), msg, fields)
}

func (z *zerologAdapter) Error(ctx context.Context, msg string, err error, fields ...Fields) {
	emit(ctx, z.logger.Error().Err(err), msg, fields)
}

func (z *zerologAdapter) Fatal(ctx context.Context, msg string, err error, fields ...Fields) {
	emit(ctx, z.logger.Fatal().Err(err), msg, fields)
}

// With returns a child logger carrying fields. Span ids are resolved per
// call, not captured here.
func (z *zerologAdapter) With(fields Fields) Logger {
	return &zerologAdapter{logger: z.logger.With().Fields(fields).Logger()}
}
