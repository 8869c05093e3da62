package cdr

import (
	"time"
)

// Status is the outcome the PBX reports for one leg.
type Status string

const (
	StatusCompleted  Status = "Completed"
	StatusAbandoned  Status = "Abandoned"
	StatusRedirected Status = "Redirected"
	StatusDirectCall Status = "Direct call"
	StatusIVR        Status = "IVR"
)

// Statuses lists every known Status in declaration order.
var Statuses = []Status{
	StatusCompleted,
	StatusAbandoned,
	StatusRedirected,
	StatusDirectCall,
	StatusIVR,
}

func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusAbandoned, StatusRedirected, StatusDirectCall, StatusIVR:
		return true
	default:
		return false
	}
}

// CallEvent is one leg of a call as reported by the PBX.
type CallEvent struct {
	ID                 uint64    `gorm:"column:id;primaryKey;autoIncrement"                 json:"-"`
	CallID             string    `gorm:"column:call_id;type:varchar(255);uniqueIndex;not null" json:"call_id"               validate:"required"`
	ParentCallID       *string   `gorm:"column:parent_call_id;type:varchar(255);index"      json:"parent_call_id,omitempty"`
	EnterDatetime      time.Time `gorm:"column:enter_datetime;not null;index"               json:"enter_datetime"        validate:"required"`
	Status             Status    `gorm:"column:status;type:varchar(32);not null"            json:"status"                validate:"required,cdr_status"`
	StatusDetail       string    `gorm:"column:status_detail;type:text"                     json:"status_detail"`
	QueueName          *string   `gorm:"column:queue_name;type:varchar(255)"                json:"queue_name,omitempty"`
	CallingNumber      string    `gorm:"column:calling_number;type:varchar(64);not null"    json:"calling_number"        validate:"required"`
	CallingForward     *string   `gorm:"column:calling_forward;type:varchar(64)"            json:"calling_forward,omitempty"`
	TimeInQueueSeconds *float64  `gorm:"column:time_in_queue_seconds"                       json:"time_in_queue_seconds,omitempty" validate:"omitempty,gte=0"`
	Agent              *string   `gorm:"column:agent;type:varchar(255)"                     json:"agent,omitempty"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"                   json:"-"`
}

func (CallEvent) TableName() string {
	return "call_events"
}

// HasParent reports whether the leg declares a parent other than itself.
func (e *CallEvent) HasParent() bool {
	return e.ParentCallID != nil && *e.ParentCallID != "" && *e.ParentCallID != e.CallID
}
