package circuitbreak

import (
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"go.uber.org/zap"
)

var CircuitBreakChan chan string

const (
	DBService            = "database"
	MinioService         = "minio"
	KafkaProducerService = "kafka_producer"
)

func Init() {
	CircuitBreakChan = make(chan string, 1)
}

// TriggerError reports a tripped breaker without blocking. A trip reported while
// another one is still pending is dropped.
func TriggerError(service string) {
	if CircuitBreakChan == nil {
		logging.Logger.Warn("circuit breaker tripped before the app was created", zap.String("service", service))
		return
	}

	select {
	case CircuitBreakChan <- service:
	default:
		logging.Logger.Warn("circuit breaker trip already pending", zap.String("service", service))
	}
}
