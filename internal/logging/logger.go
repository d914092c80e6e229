// Package logging is the process-wide structured logger the grading
// engine writes through: sandbox lifecycle events, pool replenishment,
// and pipeline step outcomes all go via L()/S() rather than log.Printf.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	once   sync.Once
)

// Init builds the global logger once: JSON output in production,
// colored console output everywhere else, selected off ENVIRONMENT.
// Safe to call multiple times; falls back to a nop logger when
// construction fails so grading never dies on a logging misconfig.
func Init() {
	once.Do(func() {
		logger = build(os.Getenv("ENVIRONMENT") == "production")
		sugar = logger.Sugar()
	})
}

func build(production bool) *zap.Logger {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l.Named("autograder")
}

// L returns the global structured logger.
func L() *zap.Logger {
	if logger == nil {
		Init()
	}
	return logger
}

// S returns the global sugared logger, the form most call sites use
// for key/value event logging.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init()
	}
	return sugar
}

// Sync flushes any buffered entries. Called from the composition root
// on shutdown.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
