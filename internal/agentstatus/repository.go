package agentstatus

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

var (
	ErrInvalidAgentStatusSliceResult         = errors.New("invalid result type, it should be slice of AgentStatus")
	ErrInvalidProfileAvailabilitySliceResult = errors.New("invalid result type, it should be slice of ProfileAvailability")
)

type Repository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewRepository(dbConn *gorm.DB) *Repository {
	return &Repository{
		DBConn:         dbConn,
		CircuitBreaker: database.NewCircuitBreaker("agent_status"),
	}
}

func (repository *Repository) AppendAgentStatuses(ctx context.Context, rows []AgentStatus) error {
	return repository.create(ctx, "[AppendAgentStatuses]", &rows, len(rows))
}

func (repository *Repository) AppendProfileAvailabilities(ctx context.Context, rows []ProfileAvailability) error {
	return repository.create(ctx, "[AppendProfileAvailabilities]", &rows, len(rows))
}

func (repository *Repository) create(ctx context.Context, caller string, rows any, count int) error {
	if count == 0 {
		return nil
	}

	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
		if err != nil {
			logging.Logger.Error(caller+" Failed to insert rows - may cause circuit breaker trip",
				zap.Int("rows", count),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return nil, nil
	})

	return err
}

func (repository *Repository) ListAgentStatuses(ctx context.Context) ([]AgentStatus, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var rows []AgentStatus

		err := repository.DBConn.WithContext(ctx).Order("id ASC").Find(&rows).Error
		if err != nil {
			logging.Logger.Error("[ListAgentStatuses] Failed to fetch agent statuses", zap.String("error", err.Error()))

			return nil, err
		}

		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	rows, ok := result.([]AgentStatus)
	if !ok {
		return nil, ErrInvalidAgentStatusSliceResult
	}

	return rows, nil
}

func (repository *Repository) ListProfileAvailabilities(ctx context.Context) ([]ProfileAvailability, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var rows []ProfileAvailability

		err := repository.DBConn.WithContext(ctx).Order("id ASC").Find(&rows).Error
		if err != nil {
			logging.Logger.Error("[ListProfileAvailabilities] Failed to fetch profile availabilities",
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	rows, ok := result.([]ProfileAvailability)
	if !ok {
		return nil, ErrInvalidProfileAvailabilitySliceResult
	}

	return rows, nil
}

// Clear empties both collections in one transaction.
func (repository *Repository) Clear(ctx context.Context) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})

			err := global.Delete(&AgentStatus{}).Error
			if err != nil {
				return err
			}

			return global.Delete(&ProfileAvailability{}).Error
		})
		if err != nil {
			logging.Logger.Error("[Clear] Failed to clear agent status collections", zap.String("error", err.Error()))

			return nil, err
		}

		return nil, nil
	})

	return err
}
