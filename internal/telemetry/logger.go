// Package telemetry provides the engine's structured logger. Every
// component logs through this package's *zap.Logger rather than fmt.Println,
// with fields kept structured instead of interpolated into the message.
package telemetry

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger, initialized by Init. Package code that
// runs before Init (unit tests, mostly) sees a no-op logger instead of nil.
var Log *zap.Logger = zap.NewNop()

// Init configures the package logger. format "json" selects the JSON
// encoder; any other value selects the console encoder. level is a zap
// level name: debug, info, warn, error. The queryengine CLI does not call
// Init, so its commands log through the no-op logger.
func Init(level, format string) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zapLevel)
	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return nil
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	_ = Log.Sync()
}

// Named returns a child logger scoped to a component name, e.g.
// telemetry.Named("orchestrator").
func Named(component string) *zap.Logger {
	return Log.Named(component)
}
