// Package xlog builds the zap logger of the command line tool.
package xlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level maps the count of -v flags to a log level.
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.WarnLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func NewLogger(outputPath []string, level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if len(outputPath) > 0 {
		cfg.OutputPaths = outputPath
	}
	cfg.Level.SetLevel(level)
	return cfg.Build()
}
