// Package logging constructs the zap.Logger used throughout the sync
// subsystem, matching the teacher's convention of one process-wide
// logger configured from a small set of options rather than per-package
// globals.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls the logger's level and format.
type Options struct {
	// Debug enables debug-level logging and a development (console)
	// encoder; otherwise the logger is production JSON at info level.
	Debug bool
}

// New builds a *zap.Logger per Options.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}
