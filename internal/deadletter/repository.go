package deadletter

import (
	"context"
	"errors"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/database"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidCDRDeadLetterSliceResult = errors.New("invalid result type, it should be slice of CDRDeadLetter")

type DeadLetterRepository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewRepository(dbConn *gorm.DB) *DeadLetterRepository {
	return &DeadLetterRepository{
		DBConn:         dbConn,
		CircuitBreaker: database.NewCircuitBreaker("cdr_dead_letters"),
	}
}

// Save inserts letter, or overwrites payload, error, status and schedule of the
// letter with the same message id. Attempts are kept.
func (dlRepository *DeadLetterRepository) Save(ctx context.Context, letter *CDRDeadLetter) error {
	_, err := dlRepository.CircuitBreaker.Execute(func() (any, error) {
		err := dlRepository.DBConn.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "message_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"payload", "last_error", "status", "next_retry_at", "updated_at",
				}),
			}).
			Create(letter).Error
		if err != nil {
			logging.Logger.Error("[Save] Failed to store dead letter",
				zap.String("message_id", letter.MessageID),
				zap.String("error", err.Error()),
			)
		}

		return nil, err
	})

	return err
}

// ClaimDue moves up to limit pending letters that are due and have attempts left
// to in_progress and returns them. Rows claimed by another instance are skipped.
func (dlRepository *DeadLetterRepository) ClaimDue(
	ctx context.Context,
	now time.Time,
	maxAttempts int,
	limit int,
) ([]CDRDeadLetter, error) {
	result, err := dlRepository.CircuitBreaker.Execute(func() (any, error) {
		var letters []CDRDeadLetter

		err := dlRepository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
				Where("status = ? AND next_retry_at <= ? AND attempts < ?", StatusPending, now, maxAttempts).
				Order("created_at ASC").
				Limit(limit).
				Find(&letters).Error
			if err != nil || len(letters) == 0 {
				return err
			}

			ids := make([]string, len(letters))
			for idx := range letters {
				ids[idx] = letters[idx].MessageID
				letters[idx].Status = StatusInProgress
			}

			return tx.Model(&CDRDeadLetter{}).
				Where("message_id IN ?", ids).
				Update("status", StatusInProgress).Error
		})
		if err != nil {
			logging.Logger.Error("[ClaimDue] Failed to claim dead letters", zap.String("error", err.Error()))
			return nil, err
		}

		return letters, nil
	})
	if err != nil {
		return nil, err
	}

	letters, ok := result.([]CDRDeadLetter)
	if !ok {
		return nil, ErrInvalidCDRDeadLetterSliceResult
	}

	return letters, nil
}

// Reschedule counts a failed attempt and puts the letter back to pending.
func (dlRepository *DeadLetterRepository) Reschedule(
	ctx context.Context,
	messageID string,
	errMsg string,
	retryAt time.Time,
) error {
	return dlRepository.update(ctx, messageID, map[string]any{
		"attempts":      gorm.Expr("attempts + 1"),
		"status":        StatusPending,
		"last_error":    errMsg,
		"next_retry_at": retryAt,
	})
}

func (dlRepository *DeadLetterRepository) MarkFailed(ctx context.Context, messageID string, errMsg string) error {
	return dlRepository.update(ctx, messageID, map[string]any{
		"status":     StatusFailed,
		"last_error": errMsg,
	})
}

// ReleaseClaimed returns letters left in_progress by a stopped worker to pending.
func (dlRepository *DeadLetterRepository) ReleaseClaimed(ctx context.Context) (int64, error) {
	result, err := dlRepository.CircuitBreaker.Execute(func() (any, error) {
		tx := dlRepository.DBConn.WithContext(ctx).
			Model(&CDRDeadLetter{}).
			Where("status = ?", StatusInProgress).
			Update("status", StatusPending)

		return tx.RowsAffected, tx.Error
	})
	if err != nil {
		return 0, err
	}

	released, _ := result.(int64)

	return released, nil
}

func (dlRepository *DeadLetterRepository) Delete(ctx context.Context, messageID string) error {
	_, err := dlRepository.CircuitBreaker.Execute(func() (any, error) {
		return nil, dlRepository.DBConn.WithContext(ctx).
			Where("message_id = ?", messageID).
			Delete(&CDRDeadLetter{}).Error
	})

	return err
}

func (dlRepository *DeadLetterRepository) update(ctx context.Context, messageID string, updates map[string]any) error {
	_, err := dlRepository.CircuitBreaker.Execute(func() (any, error) {
		err := dlRepository.DBConn.WithContext(ctx).
			Model(&CDRDeadLetter{}).
			Where("message_id = ?", messageID).
			Updates(updates).Error
		if err != nil {
			logging.Logger.Error("[update] Failed to update dead letter",
				zap.String("message_id", messageID),
				zap.String("error", err.Error()),
			)
		}

		return nil, err
	})

	return err
}
