package deadletter

import (
	"context"
	"sync"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

type DeadLetterWorker struct {
	WorkerPool  *ants.Pool
	DLService   *DeadLetterService
	Interval    time.Duration
	MaxAttempts int
	BatchLimit  int
}

func NewWorker(dlService *DeadLetterService) (*DeadLetterWorker, error) {
	workerPool, err := ants.NewPool(config.Conf.DeadLetterPoolSize, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}

	return &DeadLetterWorker{
		WorkerPool:  workerPool,
		DLService:   dlService,
		Interval:    time.Duration(config.Conf.DeadLetterCallInterval) * time.Minute,
		MaxAttempts: config.Conf.DeadLetterCallMaxRetries,
		BatchLimit:  config.Conf.DeadLetterCallLimit,
	}, nil
}

// Run retries due letters every Interval until ctx is canceled. Letters a
// previous run left in_progress are released first.
func (dlWorker *DeadLetterWorker) Run(ctx context.Context) {
	defer dlWorker.WorkerPool.Release()

	released, err := dlWorker.DLService.DLRepository.ReleaseClaimed(ctx)
	if err != nil {
		logging.Logger.Error("[Run] Failed to release claimed dead letters", zap.String("error", err.Error()))
	} else if released > 0 {
		logging.Logger.Info("[Run] Released claimed dead letters", zap.Int64("count", released))
	}

	ticker := time.NewTicker(dlWorker.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dlWorker.processDue(ctx)
		}
	}
}

// processDue claims one batch and waits until every letter of it is handled.
func (dlWorker *DeadLetterWorker) processDue(ctx context.Context) {
	letters, err := dlWorker.DLService.DLRepository.ClaimDue(
		ctx,
		dlWorker.DLService.Now(),
		dlWorker.MaxAttempts,
		dlWorker.BatchLimit,
	)
	if err != nil {
		return
	}

	if len(letters) == 0 {
		logging.Logger.Debug("[processDue] No dead letters due")
		return
	}

	logging.Logger.Info("[processDue] Processing dead letters", zap.Int("count", len(letters)))

	var waitGroup sync.WaitGroup

	for idx := range letters {
		letter := &letters[idx]

		waitGroup.Add(1)

		err := dlWorker.WorkerPool.Submit(func() {
			defer waitGroup.Done()

			dlWorker.DLService.ProcessDeadLetter(ctx, letter)
		})
		if err != nil {
			waitGroup.Done()

			logging.Logger.Error("[processDue] Failed to submit dead letter to worker pool",
				zap.String("message_id", letter.MessageID),
				zap.String("error", err.Error()),
			)

			retryErr := dlWorker.DLService.DLRepository.Reschedule(ctx, letter.MessageID, err.Error(), dlWorker.DLService.Now())
			if retryErr != nil {
				logging.Logger.Error("[processDue] Failed to release dead letter", zap.String("error", retryErr.Error()))
			}
		}
	}

	waitGroup.Wait()
}
