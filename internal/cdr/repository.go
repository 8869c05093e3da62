package cdr

import (
	"context"
	"errors"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/database"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const insertBatchSize = 500

var ErrInvalidCallEventSliceResult = errors.New("invalid result type, it should be slice of CallEvent")

type CallEventRepository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewCallEventRepository(dbConn *gorm.DB) *CallEventRepository {
	return &CallEventRepository{
		DBConn:         dbConn,
		CircuitBreaker: database.NewCircuitBreaker("call_events"),
	}
}

// ListCallEvents returns the complete persisted collection in ingestion order.
func (repository *CallEventRepository) ListCallEvents(ctx context.Context) ([]CallEvent, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var events []CallEvent

		err := repository.DBConn.WithContext(ctx).
			Order("id ASC").
			Find(&events).Error
		if err != nil {
			logging.Logger.Error("[ListCallEvents] Failed to fetch call events - may cause circuit breaker trip",
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return events, nil
	})
	if err != nil {
		return nil, err
	}

	events, ok := result.([]CallEvent)
	if !ok {
		return nil, ErrInvalidCallEventSliceResult
	}

	return events, nil
}

// AppendCallEvents inserts the batch in a single transaction.
func (repository *CallEventRepository) AppendCallEvents(ctx context.Context, events []CallEvent) error {
	if len(events) == 0 {
		return nil
	}

	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(&events, insertBatchSize).Error
		})
		if err != nil {
			logging.Logger.Error("[AppendCallEvents] Failed to insert call events - may cause circuit breaker trip",
				zap.Int("batch_size", len(events)),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return nil, nil
	})

	return err
}

// ClearCallEvents removes every persisted call event.
func (repository *CallEventRepository) ClearCallEvents(ctx context.Context) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).
			Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&CallEvent{}).Error
		if err != nil {
			logging.Logger.Error("[ClearCallEvents] Failed to clear call events",
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return nil, nil
	})

	return err
}
