package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapOptions selects the backend encoding and verbosity.
type ZapOptions struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "console" or "json"
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a zap-backed Logger. The console encoding is the
// operator-facing default; JSON is for log shipping.
func NewZapLogger(options ZapOptions) (Logger, error) {
	level, err := parseLevel(options.Level)
	if err != nil {
		return nil, err
	}

	var config zap.Config
	switch options.Format {
	case "", "console":
		config = zap.NewDevelopmentConfig()
		config.Encoding = "console"
	case "json":
		config = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format: %s", options.Format)
	}

	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return &zapLogger{sugar: logger.Sugar()}, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

func (l *zapLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *zapLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *zapLogger) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *zapLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}
