package healthchecker

import (
	"context"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	prometheusCallpath "git.mci.dev/mse/sre/phoenix/golang/callpath/internal/prometheus"
	"go.uber.org/zap"
)

type CheckFunc func() error

// Healthchecker stops the app on the first tripped breaker and later polls the
// failed dependency until it recovers.
type Healthchecker struct {
	CtxCancelFunc context.CancelFunc
	ErrorService  string
	Checks        map[string]CheckFunc
	Interval      time.Duration
}

func NewService(ctxCancelFunc context.CancelFunc) *Healthchecker {
	return &Healthchecker{
		CtxCancelFunc: ctxCancelFunc,
		Checks: map[string]CheckFunc{
			circuitbreak.DBService:            CheckDB,
			circuitbreak.MinioService:         CheckMinio,
			circuitbreak.KafkaProducerService: CheckKafkaProducer,
		},
		Interval: time.Duration(config.Conf.HealthCheckerMonitorInterval) * time.Second,
	}
}

// Monitor waits for the first tripped breaker and cancels the app. It returns
// without cancelling when ctx ends first.
func (h *Healthchecker) Monitor(ctx context.Context) {
	logging.Logger.Info("[Monitor] Health checker started")

	select {
	case serviceName := <-circuitbreak.CircuitBreakChan:
		logging.Logger.Warn("[Monitor] Circuit breaker tripped", zap.String("service", serviceName))
		prometheusCallpath.CircuitBreakerTrips.WithLabelValues(serviceName).Inc()

		h.ErrorService = serviceName
		h.CtxCancelFunc()
	case <-ctx.Done():
	}
}

// Check blocks until the failed dependency reports healthy again or ctx ends.
func (h *Healthchecker) Check(ctx context.Context) error {
	if h.ErrorService == "" {
		logging.Logger.Warn("[Check] No failed dependency recorded")
		return nil
	}

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if h.checkErrorService() {
				h.ErrorService = ""
				return nil
			}
		}
	}
}

func (h *Healthchecker) checkErrorService() bool {
	check, ok := h.Checks[h.ErrorService]
	if !ok {
		logging.Logger.Warn("[Check] Unknown dependency", zap.String("service", h.ErrorService))
		return false
	}

	err := check()
	if err != nil {
		logging.Logger.Info("[Check] Dependency still unhealthy",
			zap.String("service", h.ErrorService),
			zap.String("error", err.Error()),
		)

		return false
	}

	logging.Logger.Info("[Check] Dependency healthy again", zap.String("service", h.ErrorService))

	return true
}
