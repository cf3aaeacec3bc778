// Package logging builds the zap logger shared by the API server and the
// consolidation job.
//
// Level names follow zapcore (debug, info, warn, error). Unknown levels fall
// back to info. The development environment gets the human-readable console
// encoder; everything else logs JSON.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New(level string, environment string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Must is New that panics, for main packages.
func Must(level string, environment string) *zap.Logger {
	l, err := New(level, environment)
	if err != nil {
		panic(err)
	}
	return l
}
