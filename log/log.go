// Package log provides the structured logger used by every long-running
// component of a replica or client process.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the geth-style level interface every component depends on.
// Components never reach for the global zap logger directly, so tests can
// swap in NewNop without touching call sites.
type Logger interface {
	Trace(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Crit(msg string, fields ...zap.Field)

	// With returns a logger that always includes the given fields.
	With(fields ...zap.Field) Logger
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a production logger writing level-tagged JSON to stderr.
func New(component string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		// Fall back to a minimal logger rather than crash a replica over a
		// logging misconfiguration.
		z = zap.NewNop()
	}
	return &zapLogger{z: z.With(zap.String("component", component))}
}

// NewDevelopment builds a human-readable logger for local runs.
func NewDevelopment(component string) Logger {
	z, err := zap.NewDevelopment()
	if err != nil {
		z = zap.NewNop()
	}
	return &zapLogger{z: z.With(zap.String("component", component))}
}

// NewNop discards everything; used in tests.
func NewNop() Logger {
	return &zapLogger{z: zap.NewNop()}
}

func (l *zapLogger) Trace(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

func (l *zapLogger) Crit(msg string, fields ...zap.Field) {
	l.z.Error(msg, fields...)
	l.z.Sync()
	os.Exit(1)
}

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}
