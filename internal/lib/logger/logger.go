package logger

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New returns an slog logger backed by zap, the zap logger itself (for the
// gin middleware) and its Sync func. dev and prod log JSON; dev also logs
// at debug. Anything else gets the colored development console.
func New(env string) (*slog.Logger, *zap.Logger, func() error) {
	var zapLogger *zap.Logger

	switch env {
	case EnvProd:
		zapLogger = zap.Must(zap.NewProduction())
	case EnvDev:
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zapLogger = zap.Must(config.Build())
	default:
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapLogger = zap.Must(config.Build())
	}

	return slog.New(zapslog.NewHandler(zapLogger.Core())), zapLogger, zapLogger.Sync
}
