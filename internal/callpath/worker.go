package callpath

import (
	"context"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/deadletter"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	prometheusCallpath "git.mci.dev/mse/sre/phoenix/golang/callpath/internal/prometheus"
	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const sourceKafka = "kafka"

// MessageHandler processes one CDR message on the worker pool. It waits for the
// job so that messages are marked only after their ingestion finished.
func (app *App) MessageHandler(ctx context.Context, msg *sarama.ConsumerMessage) {
	done := make(chan struct{})

	err := app.WorkerPool.Submit(func() {
		defer close(done)

		app.processMessage(ctx, msg)
	})
	if err != nil {
		logging.Logger.Error("failed to submit job to ants pool", zap.String("error", err.Error()))

		app.deadLetter(ctx, msg, err)

		return
	}

	<-done
}

func (app *App) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) {
	timer := prometheus.NewTimer(prometheusCallpath.ProcessMessageDuration.WithLabelValues(sourceKafka))

	defer func() {
		duration := timer.ObserveDuration()
		logging.Logger.Debug("Process message duration", zap.Duration("duration", duration))
	}()

	defer app.handlePanic(msg)

	recordKafkaLatency(msg)

	result, err := app.CallService.ProcessCallMessage(ctx, msg.Value)
	if err != nil {
		logging.Logger.Error("failed to process call message",
			zap.String("error", err.Error()),
			zap.String("message_id", sourceOf(msg).ID()),
			zap.ByteString("msg_value", msg.Value),
		)

		app.deadLetter(ctx, msg, err)

		return
	}

	logging.Logger.Info("message processed successfully",
		zap.String("message_id", sourceOf(msg).ID()),
		zap.Int("accepted", result.Accepted),
		zap.Strings("affected_calls", result.AffectedCalls),
	)
}

func sourceOf(msg *sarama.ConsumerMessage) deadletter.Source {
	return deadletter.Source{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset}
}

func (app *App) deadLetter(ctx context.Context, msg *sarama.ConsumerMessage, cause error) {
	err := app.DeadLetterService.MarkMessage(ctx, sourceOf(msg), msg.Value, cause)
	if err != nil {
		logging.Logger.Error("failed to store dead letter",
			zap.String("message_id", sourceOf(msg).ID()),
			zap.String("error", err.Error()),
		)
	}
}

func recordKafkaLatency(msg *sarama.ConsumerMessage) {
	if msg.Timestamp.IsZero() {
		return
	}

	latency := time.Since(msg.Timestamp).Seconds()
	prometheusCallpath.KafkaMessageLatency.WithLabelValues(msg.Topic).Observe(latency)
}

func (app *App) handlePanic(msg *sarama.ConsumerMessage) {
	if r := recover(); r != nil {
		logging.Logger.Error("panic in message worker",
			zap.String("message_id", sourceOf(msg).ID()),
			zap.Any("recover", r),
		)
	}
}
