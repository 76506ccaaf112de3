package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance. It is a no-op logger until Initialize runs,
// so packages and tests can log unconditionally.
var Log = zap.NewNop()

// Options controls where and how much the service logs.
type Options struct {
	Level string // "debug", "info", "warn", "error" (default: "info")
	File  string // rotated JSON log file; empty disables file output
	JSON  bool   // JSON on stdout instead of the console encoder
}

// Initialize sets up the structured logger: a human-readable console core plus
// an optional rotated JSON file core.
func Initialize(opts Options) error {
	level := parseLogLevel(opts.Level)

	var stdoutEncoder zapcore.Encoder
	if opts.JSON {
		stdoutEncoder = zapcore.NewJSONEncoder(productionEncoderConfig())
	} else {
		stdoutEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), level),
	}

	if opts.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(productionEncoderConfig()),
			fileWriter,
			level,
		))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	Log.Info("Logger initialized",
		zap.String("level", level.String()),
		zap.String("file", opts.File),
	)
	return nil
}

// Close flushes the logger before shutdown
func Close() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}

func productionEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// parseLogLevel converts string to zapcore.Level
func parseLogLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ErrorWithFields logs an error message with an error
func ErrorWithFields(msg string, err error) {
	if err != nil {
		Log.Error(msg, zap.Error(err))
	} else {
		Log.Error(msg)
	}
}

// WarnWithFields logs a warning message, optionally with an error
func WarnWithFields(msg string, err error) {
	if err != nil {
		Log.Warn(msg, zap.Error(err))
	} else {
		Log.Warn(msg)
	}
}

// Field helpers shared by handlers and middleware.

func WithRequestID(requestID string) zap.Field {
	return zap.String("request_id", requestID)
}

func WithUserID(userID int64) zap.Field {
	return zap.Int64("user_id", userID)
}

// WithTarget identifies an engagement target without leaking its permalink token.
func WithTarget(targetType string, targetID int64) zap.Field {
	return zap.Dict("target",
		zap.String("type", targetType),
		zap.Int64("id", targetID),
	)
}

// WithViewer logs the opaque identity label, never the raw IP or user agent.
func WithViewer(label string) zap.Field {
	return zap.String("viewer", label)
}

func WithStatus(status int) zap.Field {
	return zap.Int("status", status)
}
