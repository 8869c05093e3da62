package deadletter

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	// StatusFailed marks payloads that can never be ingested as sent.
	StatusFailed Status = "failed"
)

// Source is the position of a CDR message in the Kafka log.
type Source struct {
	Topic     string
	Partition int32
	Offset    int64
}

// ID maps a redelivered message to the same dead letter.
func (s Source) ID() string {
	return fmt.Sprintf("%s-%d-%d", s.Topic, s.Partition, s.Offset)
}

// CDRDeadLetter is a CDR payload that could not be ingested. Payload is kept as
// raw bytes since undecodable messages are dead-lettered too.
type CDRDeadLetter struct {
	MessageID   string    `gorm:"column:message_id;type:varchar(255);primaryKey"`
	Topic       string    `gorm:"column:topic;type:varchar(255);not null"`
	Partition   int32     `gorm:"column:kafka_partition;not null"`
	Offset      int64     `gorm:"column:kafka_offset;not null"`
	Payload     []byte    `gorm:"column:payload;not null"`
	LastError   string    `gorm:"column:last_error;type:text;not null"`
	Status      Status    `gorm:"column:status;type:varchar(20);not null;index"`
	Attempts    int       `gorm:"column:attempts;not null;default:0"`
	NextRetryAt time.Time `gorm:"column:next_retry_at;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CDRDeadLetter) TableName() string {
	return "cdr_dead_letters"
}

const maxBackoffShift = 10

// nextRetryAt doubles base for every attempt already made.
func nextRetryAt(now time.Time, base time.Duration, attempts int) time.Time {
	shift := min(max(attempts, 0), maxBackoffShift)

	return now.Add(base << shift)
}
