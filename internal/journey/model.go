package journey

import (
	"time"
)

// EventType classifies one step of a caller journey.
type EventType string

// EnterQueue, EnterIVR and Hangup are part of the published vocabulary but are not
// produced by Classify.
const (
	EventTimeout    EventType = "Timeout"
	EventKeyPress   EventType = "KeyPress"
	EventExitIVR    EventType = "ExitIVR"
	EventHangup     EventType = "Hangup"
	EventEnterQueue EventType = "EnterQueue"
	EventEnterIVR   EventType = "EnterIVR"
)

const (
	RootPath      = "Entry"
	PathSeparator = " -> "
	KeypressLabel = "Keypress"
)

// Event is one classified, ordered step of a logical call.
type Event struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"               json:"-"`
	Datetime      time.Time `gorm:"column:datetime;not null"                         json:"datetime"`
	CallID        string    `gorm:"column:call_id;type:varchar(255);not null;index"  json:"call_id"`
	LegCallID     string    `gorm:"column:leg_call_id;type:varchar(255);not null"    json:"leg_call_id"`
	QueueName     *string   `gorm:"column:queue_name;type:varchar(255)"              json:"queue_name"`
	CallingNumber string    `gorm:"column:calling_number;type:varchar(64);not null"  json:"calling_number"`
	EventType     EventType `gorm:"column:event_type;type:varchar(32);not null"      json:"event_type"`
	EventDetail   string    `gorm:"column:event_detail;type:text"                    json:"event_detail"`
	IvrPath       string    `gorm:"column:ivr_path;type:text;not null"               json:"ivr_path"`
	Duration      *float64  `gorm:"column:duration"                                  json:"duration,omitempty"`
}

func (Event) TableName() string {
	return "ivr_journey_events"
}
