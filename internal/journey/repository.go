package journey

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

var ErrInvalidEventSliceResult = errors.New("invalid result type, it should be slice of journey Event")

type EventRepository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewEventRepository(dbConn *gorm.DB) *EventRepository {
	return &EventRepository{
		DBConn:         dbConn,
		CircuitBreaker: database.NewCircuitBreaker("ivr_journey_events"),
	}
}

// ReplaceEvents swaps the whole derived collection for events atomically.
func (repository *EventRepository) ReplaceEvents(ctx context.Context, events []Event) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Event{}).Error
			if err != nil {
				return err
			}

			if len(events) == 0 {
				return nil
			}

			for idx := range events {
				events[idx].ID = 0
			}

			return tx.CreateInBatches(&events, insertBatchSize).Error
		})
		if err != nil {
			logging.Logger.Error("[ReplaceEvents] Failed to replace journey events - may cause circuit breaker trip",
				zap.Int("events", len(events)),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return nil, nil
	})

	return err
}

func (repository *EventRepository) ListEvents(ctx context.Context) ([]Event, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var events []Event

		err := repository.DBConn.WithContext(ctx).
			Order("id ASC").
			Find(&events).Error
		if err != nil {
			logging.Logger.Error("[ListEvents] Failed to fetch journey events",
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return events, nil
	})
	if err != nil {
		return nil, err
	}

	events, ok := result.([]Event)
	if !ok {
		return nil, ErrInvalidEventSliceResult
	}

	return events, nil
}

func (repository *EventRepository) ClearEvents(ctx context.Context) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).
			Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&Event{}).Error
		if err != nil {
			logging.Logger.Error("[ClearEvents] Failed to clear journey events",
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return nil, nil
	})

	return err
}
