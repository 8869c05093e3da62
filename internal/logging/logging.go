package logging

import (
	"os"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

func init() {
	var err error

	Logger, err = newLogger(config.Conf.LogLevel, config.Conf.LogFilePath)
	if err != nil {
		zap.NewExample().Fatal("Could not initialize logger", zap.String("error", err.Error()))
	}
}

// newLogger tees a console core on stdout with a JSON file core when filePath is set.
func newLogger(logLevel, filePath string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		zap.NewExample().Info("Invalid log level, using info level", zap.String("log_level", logLevel))

		level = zapcore.InfoLevel
	}

	developmentEncoderConfig := zap.NewDevelopmentEncoderConfig()
	developmentEncoderConfig.ConsoleSeparator = "  "
	developmentEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(developmentEncoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		),
	}

	if filePath != "" {
		productionEncoderConfig := zap.NewProductionEncoderConfig()
		productionEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		zapConfig := &zap.Config{
			Level:             zap.NewAtomicLevelAt(level),
			Development:       false,
			DisableCaller:     false,
			DisableStacktrace: false,
			Encoding:          "json",
			EncoderConfig:     productionEncoderConfig,
			OutputPaths:       []string{filePath},
		}

		fileLogger, err := zapConfig.Build()
		if err != nil {
			return nil, err
		}

		cores = append(cores, fileLogger.Core())
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
