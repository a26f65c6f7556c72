// Package logger provides structured logging for AgriTrace.
//
// Uses zap with AtomicLevel for hot-reload support.
// JSON format for production, console for development. An optional
// rotating file sink (lumberjack) can be teed next to stderr.
//
// Import Path: agritrace.io/agritrace/internal/pkg/logger
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// global is the package-level logger instance.
	global      *zap.Logger
	atomicLevel zap.AtomicLevel
	once        sync.Once
)

// FileSink configures rotating file output.
type FileSink struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Option customizes Init.
type Option func(*options)

type options struct {
	file *FileSink
}

// WithFile tees log output into a size-rotated file. An empty path is ignored.
func WithFile(sink FileSink) Option {
	return func(o *options) {
		if sink.Path == "" {
			return
		}
		o.file = &sink
	}
}

// Init initializes the global logger.
// level: debug, info, warn, error
// format: json or console
func Init(level, format string, opts ...Option) error {
	var initErr error
	once.Do(func() {
		var o options
		for _, opt := range opts {
			opt(&o)
		}

		atomicLevel = zap.NewAtomicLevel()
		if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", level, err)
			return
		}

		var cfg zap.Config
		switch format {
		case "console":
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		default:
			cfg = zap.NewProductionConfig()
		}
		cfg.Level = atomicLevel

		buildOpts := []zap.Option{zap.AddCallerSkip(1)}
		if o.file != nil {
			fileCore := newFileCore(*o.file)
			buildOpts = append(buildOpts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
				return zapcore.NewTee(core, fileCore)
			}))
		}

		logger, err := cfg.Build(buildOpts...)
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		global = logger
	})
	return initErr
}

func newFileCore(sink FileSink) zapcore.Core {
	writer := &lumberjack.Logger{
		Filename:   sink.Path,
		MaxSize:    sink.MaxSizeMB,
		MaxBackups: sink.MaxBackups,
		MaxAge:     sink.MaxAgeDays,
		Compress:   true,
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), atomicLevel)
}

// SetLevel dynamically changes the log level (hot-reload support).
func SetLevel(level string) error {
	return atomicLevel.UnmarshalText([]byte(level))
}

// GetLevel returns the current log level.
func GetLevel() zapcore.Level {
	return atomicLevel.Level()
}

// L returns the global logger. Panics if Init has not been called.
func L() *zap.Logger {
	if global == nil {
		panic("logger.Init() must be called before logger.L()")
	}
	return global
}

// Debug logs a message at DebugLevel.
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Info logs a message at InfoLevel.
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn logs a message at WarnLevel.
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error logs a message at ErrorLevel.
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Named returns a child logger scoped to a component name.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Level exposes the AtomicLevel, which doubles as an http.Handler for
// GET/PUT /log/level.
func Level() *zap.AtomicLevel {
	return &atomicLevel
}

// Sync flushes any buffered log entries.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
