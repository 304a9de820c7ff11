package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// InitLogger builds the process-wide logger. Every entry carries a service
// field so the storefront's services can share one log pipeline.
func InitLogger(env, service string) error {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	built, err := config.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		return err
	}

	logger = built
	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the global logger, falling back to a development
// logger so tests need no bootstrap
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// SyncLogger flushes buffered entries; deferred from main
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
