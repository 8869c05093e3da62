package kafka

import (
	"time"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/circuitbreak"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/IBM/sarama"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Producer publishes derived journeys behind the kafka_producer breaker.
type Producer struct {
	Client         sarama.SyncProducer
	CircuitBreaker *gobreaker.CircuitBreaker[*sarama.ProducerMessage]
}

func NewProducer() (*Producer, error) {
	client, err := sarama.NewSyncProducer([]string{config.Conf.KafkaBootstrapServer}, newProducerConfig())
	if err != nil {
		logging.Logger.Error("[NewProducer] Failed to create Kafka producer",
			zap.String("bootstrap", config.Conf.KafkaBootstrapServer),
			zap.String("error", err.Error()),
		)

		return nil, err
	}

	logging.Logger.Info("[NewProducer] Connected Kafka producer",
		zap.String("bootstrap", config.Conf.KafkaBootstrapServer),
		zap.String("mechanism", mechanism()),
	)

	return NewProducerWithClient(client), nil
}

// NewProducerWithClient wraps an existing sync producer with the producer breaker.
func NewProducerWithClient(client sarama.SyncProducer) *Producer {
	return &Producer{
		Client: client,
		CircuitBreaker: gobreaker.NewCircuitBreaker[*sarama.ProducerMessage](gobreaker.Settings{
			Name:     circuitbreak.KafkaProducerService,
			Interval: time.Duration(config.Conf.KafkaIntervalCB) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.Conf.KafkaConsecutiveFailuresCB
			},
			OnStateChange: func(name string, fromState, toState gobreaker.State) {
				logging.Logger.Warn("Circuit state changed",
					zap.String("service", name),
					zap.String("from", fromState.String()),
					zap.String("to", toState.String()),
				)

				if toState == gobreaker.StateOpen {
					circuitbreak.TriggerError(circuitbreak.KafkaProducerService)
				}
			},
		}),
	}
}

// Send publishes message and returns it with Partition and Offset filled in.
func (p *Producer) Send(message *sarama.ProducerMessage) (*sarama.ProducerMessage, error) {
	return p.CircuitBreaker.Execute(func() (*sarama.ProducerMessage, error) {
		if message.Timestamp.IsZero() {
			message.Timestamp = time.Now()
		}

		_, _, err := p.Client.SendMessage(message)
		if err != nil {
			logging.Logger.Error("[Send] Failed to send message to Kafka",
				zap.String("topic", message.Topic),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		logging.Logger.Debug("[Send] Message sent",
			zap.String("topic", message.Topic),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
		)

		return message, nil
	})
}

func (p *Producer) Close() error {
	err := p.Client.Close()
	if err != nil {
		logging.Logger.Error("[Close] Failed to close Kafka producer", zap.String("error", err.Error()))
		return err
	}

	logging.Logger.Info("[Close] Kafka producer closed")

	return nil
}

// Ping connects to the cluster and refreshes the journey topic metadata.
func Ping() error {
	client, err := sarama.NewClient([]string{config.Conf.KafkaBootstrapServer}, newProducerConfig())
	if err != nil {
		return err
	}

	defer func() { _ = client.Close() }()

	return client.RefreshMetadata(config.Conf.KafkaJourneyTopic)
}
