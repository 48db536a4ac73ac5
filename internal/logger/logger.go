// Package logger provides structured logging for gofetch using zap.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/gofetch/internal/config"
)

// Logger wraps zap.SugaredLogger with the context helpers used by the
// engine: model, query expression and fetch path.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// New builds a Logger from the logging section of the configuration.
// Output is "stdout", "stderr" or a file path; files are appended to.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.Level); err != nil {
			return nil, err
		}
	}

	output := cfg.Output
	if output == "" {
		output = "stdout"
	}
	sink, _, err := zap.Open(output)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output %q: %w", output, err)
	}

	core := zapcore.NewCore(encoder(cfg.Format), sink, level)
	return FromCore(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// encoder returns a JSON encoder for "json" and a colored console encoder
// for anything else.
func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.SecondsDurationEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// NewNop creates a Logger that discards everything.
func NewNop() *Logger {
	return FromCore(zapcore.NewNopCore())
}

// FromCore creates a Logger on top of an existing zap core. Tests use it with
// zaptest/observer to inspect emitted entries.
func FromCore(core zapcore.Core, opts ...zap.Option) *Logger {
	base := zap.New(core, opts...)
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

func (l *Logger) with(key string, value interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(key, value), base: l.base}
}

// WithModel tags entries with a model name.
func (l *Logger) WithModel(model string) *Logger {
	return l.with("model", model)
}

// WithQuery tags entries with the query expression being executed.
func (l *Logger) WithQuery(query string) *Logger {
	return l.with("query", query)
}

// WithPath tags entries with the field path of a fetch node. Root nodes have
// no path and are left untagged.
func (l *Logger) WithPath(path string) *Logger {
	if path == "" {
		return l
	}
	return l.with("path", path)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
