package deadletter

import (
	"context"
	"errors"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/call"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MessageProcessor interface {
	ProcessCallMessage(ctx context.Context, msg []byte) (*call.IngestResult, error)
}

type DeadLetterService struct {
	DLRepository *DeadLetterRepository
	Processor    MessageProcessor
	RetryDelay   time.Duration
	Now          func() time.Time
}

func NewService(dbConn *gorm.DB, processor MessageProcessor) *DeadLetterService {
	return &DeadLetterService{
		DLRepository: NewRepository(dbConn),
		Processor:    processor,
		RetryDelay:   time.Duration(config.Conf.DeadLetterCallRetryDelay) * time.Minute,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// MarkMessage records a payload that failed ingestion. Payloads rejected as
// invalid are stored as failed and never retried.
func (dlService *DeadLetterService) MarkMessage(ctx context.Context, source Source, msg []byte, cause error) error {
	now := dlService.Now()

	letter := &CDRDeadLetter{
		MessageID:   source.ID(),
		Topic:       source.Topic,
		Partition:   source.Partition,
		Offset:      source.Offset,
		Payload:     msg,
		LastError:   cause.Error(),
		Status:      StatusPending,
		NextRetryAt: nextRetryAt(now, dlService.RetryDelay, 0),
	}

	if errors.Is(cause, call.ErrInvalidPayload) {
		letter.Status = StatusFailed
	}

	err := dlService.DLRepository.Save(ctx, letter)
	if err != nil {
		return err
	}

	logging.Logger.Info("[MarkMessage] Stored dead letter",
		zap.String("message_id", letter.MessageID),
		zap.String("status", string(letter.Status)),
	)

	return nil
}

// ProcessDeadLetter re-ingests one claimed letter. Success deletes it, an invalid
// payload fails it and any other error schedules the next attempt.
func (dlService *DeadLetterService) ProcessDeadLetter(ctx context.Context, letter *CDRDeadLetter) {
	result, err := dlService.Processor.ProcessCallMessage(ctx, letter.Payload)
	if err != nil {
		logging.Logger.Error("[ProcessDeadLetter] Failed to reprocess message",
			zap.String("message_id", letter.MessageID),
			zap.Int("attempts", letter.Attempts+1),
			zap.String("error", err.Error()),
		)

		if errors.Is(err, call.ErrInvalidPayload) {
			err = dlService.DLRepository.MarkFailed(ctx, letter.MessageID, err.Error())
		} else {
			retryAt := nextRetryAt(dlService.Now(), dlService.RetryDelay, letter.Attempts+1)
			err = dlService.DLRepository.Reschedule(ctx, letter.MessageID, err.Error(), retryAt)
		}

		if err != nil {
			logging.Logger.Error("[ProcessDeadLetter] Failed to update dead letter",
				zap.String("message_id", letter.MessageID),
				zap.String("error", err.Error()),
			)
		}

		return
	}

	logging.Logger.Info("[ProcessDeadLetter] Dead letter ingested",
		zap.String("message_id", letter.MessageID),
		zap.Int("accepted", result.Accepted),
	)

	err = dlService.DLRepository.Delete(ctx, letter.MessageID)
	if err != nil {
		logging.Logger.Error("[ProcessDeadLetter] Failed to delete ingested dead letter",
			zap.String("message_id", letter.MessageID),
			zap.String("error", err.Error()),
		)
	}
}
