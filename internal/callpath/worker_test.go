package callpath

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
)

func TestSourceOfUsesLogPosition(t *testing.T) {
	msg := &sarama.ConsumerMessage{Topic: "pbx-cdr-events", Partition: 3, Offset: 42}

	assert.Equal(t, "pbx-cdr-events-3-42", sourceOf(msg).ID())
}

func TestRecordKafkaLatencyIgnoresMissingTimestamp(t *testing.T) {
	assert.NotPanics(t, func() {
		recordKafkaLatency(&sarama.ConsumerMessage{Topic: "pbx-cdr-events"})
		recordKafkaLatency(&sarama.ConsumerMessage{Topic: "pbx-cdr-events", Timestamp: time.Now().Add(-time.Second)})
	})
}
