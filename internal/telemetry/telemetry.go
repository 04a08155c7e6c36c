// Package telemetry wraps zap so the query and gateway layers log with
// consistent structured fields instead of each constructing their own
// logger.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin facade over *zap.Logger scoped to one query. Every
// call site adds its own extra fields on top of the ones the
// constructor bakes in.
type Logger struct {
	z *zap.Logger
}

// New builds a production-configured zap logger. Callers that want a
// quieter test run should use NewNop instead.
func New() (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// NewNop returns a Logger that discards everything, for callers that
// don't want log output (benchmarks, library embedding).
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// ForQuery returns a child logger with query_id attached to every
// subsequent entry.
func (l *Logger) ForQuery(queryId string) *Logger {
	return &Logger{z: l.z.With(zap.String("query_id", queryId))}
}

// ForChannel returns a child logger with role and channel fields
// attached, for gateway and buffer call sites.
func (l *Logger) ForChannel(role string, channel string) *Logger {
	return &Logger{z: l.z.With(zap.String("role", role), zap.String("channel", channel))}
}

// Transition logs a query state machine move.
func (l *Logger) Transition(from, to string) {
	l.z.Info("query state transition", zap.String("from", from), zap.String("to", to))
}

// Warn logs a recoverable failure (TransportError, StateError, NotFoundError).
func (l *Logger) Warn(msg string, err error) {
	l.z.Warn(msg, zap.Error(err))
}

// Error logs a fatal failure (UsageError, ProtocolError).
func (l *Logger) Error(msg string, err error) {
	l.z.Error(msg, zap.Error(err))
}

// Sync flushes any buffered log entries; callers should defer this at
// process exit.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
