package kafka

import (
	"context"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type MessageHandler func(context.Context, *sarama.ConsumerMessage)

// Consumer reads CDR batches from the PBX topic as member of one consumer group.
type Consumer struct {
	Group   sarama.ConsumerGroup
	GroupID string
}

func NewConsumer() (*Consumer, error) {
	group, err := createConsumerGroup(config.Conf.KafkaCDRGroupID)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		Group:   group,
		GroupID: config.Conf.KafkaCDRGroupID,
	}, nil
}

// Consume blocks until ctx is canceled, rejoining the group after every rebalance.
func (c *Consumer) Consume(ctx context.Context, topic string, messageHandler MessageHandler) error {
	handler := &cdrClaimHandler{
		groupID:        c.GroupID,
		messageHandler: messageHandler,
	}

	go c.logGroupErrors(topic)

	for {
		err := c.Group.Consume(ctx, []string{topic}, handler)
		if err != nil {
			logging.Logger.Error("[Consume] Kafka consume error",
				zap.String("topic", topic),
				zap.String("error", err.Error()),
			)
		}

		if ctx.Err() != nil {
			logging.Logger.Info("[Consume] Kafka consumer stopping",
				zap.String("topic", topic),
				zap.String("group_id", c.GroupID),
			)

			return nil
		}
	}
}

func (c *Consumer) logGroupErrors(topic string) {
	for err := range c.Group.Errors() {
		logging.Logger.Error("[Consume] Kafka consumer group error",
			zap.String("topic", topic),
			zap.String("group_id", c.GroupID),
			zap.String("error", err.Error()),
		)
	}
}

func (c *Consumer) Close() error {
	err := c.Group.Close()
	if err != nil {
		logging.Logger.Error("[Close] Failed to close Kafka consumer", zap.String("error", err.Error()))
		return err
	}

	logging.Logger.Info("[Close] Kafka consumer closed")

	return nil
}

type cdrClaimHandler struct {
	groupID        string
	messageHandler MessageHandler
}

func (h *cdrClaimHandler) Setup(session sarama.ConsumerGroupSession) error {
	logging.Logger.Info("[Setup] Joined consumer group",
		zap.String("group_id", h.groupID),
		zap.String("member_id", session.MemberID()),
		zap.Int32("generation", session.GenerationID()),
		zap.Any("claims", session.Claims()),
	)

	return nil
}

func (h *cdrClaimHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	logging.Logger.Info("[Cleanup] Leaving consumer group generation",
		zap.String("group_id", h.groupID),
		zap.Int32("generation", session.GenerationID()),
	)

	return nil
}

// ConsumeClaim hands messages to the handler one at a time so that a partition is
// ingested in offset order.
func (h *cdrClaimHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			h.messageHandler(session.Context(), message)

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
