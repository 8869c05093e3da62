package healthchecker

import (
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/kafka"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"go.uber.org/zap"
)

func CheckKafkaProducer() error {
	err := kafka.Ping()
	if err != nil {
		logging.Logger.Info("kafka journey topic unreachable", zap.String("error", err.Error()))
	}

	return err
}
