package kafka

import (
	"context"
	"strconv"
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/journey"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/IBM/sarama"
	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	publishRetryDelay = 200 * time.Millisecond

	headerContentType = "content-type"
	headerEventCount  = "event-count"
)

// JourneyMessage is the value published for one logical call, keyed by its root
// call_id so that every update of a call lands on the same partition.
type JourneyMessage struct {
	CallID      string          `json:"call_id"`
	Events      []journey.Event `json:"events"`
	PublishedAt time.Time       `json:"published_at"`
}

type JourneyPublisher struct {
	Producer    *Producer
	Topic       string
	MaxAttempts uint
}

func NewJourneyPublisher(producer *Producer, topic string, maxAttempts uint) *JourneyPublisher {
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	return &JourneyPublisher{
		Producer:    producer,
		Topic:       topic,
		MaxAttempts: maxAttempts,
	}
}

// PublishJourneys sends one message per logical call found in events. events is
// expected in builder order, so each call's events are contiguous.
func (p *JourneyPublisher) PublishJourneys(ctx context.Context, events []journey.Event) error {
	for _, message := range splitByCall(events) {
		producerMessage, err := p.producerMessage(message)
		if err != nil {
			return err
		}

		err = retry.Do(
			func() error {
				_, err := p.Producer.Send(producerMessage)
				return err
			},
			retry.Context(ctx),
			retry.Attempts(p.MaxAttempts),
			retry.DelayType(retry.BackOffDelay),
			retry.Delay(publishRetryDelay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			logging.Logger.Error("[PublishJourneys] Failed to publish journey",
				zap.String("call_id", message.CallID),
				zap.String("topic", p.Topic),
				zap.String("error", err.Error()),
			)

			return err
		}
	}

	return nil
}

func (p *JourneyPublisher) producerMessage(message JourneyMessage) (*sarama.ProducerMessage, error) {
	value, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}

	return &sarama.ProducerMessage{
		Topic: p.Topic,
		Key:   sarama.StringEncoder(message.CallID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerContentType), Value: []byte("application/json")},
			{Key: []byte(headerEventCount), Value: []byte(strconv.Itoa(len(message.Events)))},
		},
		Timestamp: message.PublishedAt,
	}, nil
}

func splitByCall(events []journey.Event) []JourneyMessage {
	var messages []JourneyMessage

	now := time.Now().UTC()

	for _, event := range events {
		last := len(messages) - 1
		if last >= 0 && messages[last].CallID == event.CallID {
			messages[last].Events = append(messages[last].Events, event)
			continue
		}

		messages = append(messages, JourneyMessage{
			CallID:      event.CallID,
			Events:      []journey.Event{event},
			PublishedAt: now,
		})
	}

	return messages
}
