package agentstatus

import (
	"time"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

// AgentStatus is an hourly login summary of one agent in one queue.
type AgentStatus struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"          json:"-"`
	Hour      int       `gorm:"column:hour;not null"                        json:"hour"      validate:"gte=0,lte=23"`
	LoggedIn  float64   `gorm:"column:logged_in;not null"                   json:"loggedIn"`
	LoggedOut float64   `gorm:"column:logged_out;not null"                  json:"loggedOut"`
	Idle      float64   `gorm:"column:idle;not null"                        json:"idle"`
	Date      string    `gorm:"column:date;type:varchar(32);not null;index" json:"date"      validate:"required"`
	QueueName string    `gorm:"column:queue_name;type:varchar(255)"         json:"queuename"`
	QueueID   string    `gorm:"column:queue_id;type:varchar(255)"           json:"queue_id"`
	UserID    string    `gorm:"column:user_id;type:varchar(255);index"      json:"user_id"   validate:"required"`
	User      string    `gorm:"column:user_name;type:varchar(255)"          json:"user"`
	Email     string    `gorm:"column:email;type:varchar(255)"              json:"email"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"            json:"-"`
}

func (AgentStatus) TableName() string {
	return "agent_statuses"
}

// ProfileAvailability is an hourly breakdown of the time one user spent in each
// presence profile. Profile names vary per PBX, so they are kept in Profiles and
// flattened back into the top-level object on the wire.
type ProfileAvailability struct {
	ID        uint64            `gorm:"column:id;primaryKey;autoIncrement"          json:"-"`
	Hour      int               `gorm:"column:hour;not null"                        json:"hour"     validate:"gte=0,lte=23"`
	Date      string            `gorm:"column:date;type:varchar(32);not null;index" json:"date"     validate:"required"`
	UserID    string            `gorm:"column:user_id;type:varchar(255);index"      json:"user_id"  validate:"required"`
	User      string            `gorm:"column:user_name;type:varchar(255)"          json:"user"`
	Email     string            `gorm:"column:email;type:varchar(255)"              json:"email"`
	Profiles  datatypes.JSONMap `gorm:"column:profiles;type:jsonb"                  json:"-"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"            json:"-"`
}

func (ProfileAvailability) TableName() string {
	return "profile_availabilities"
}

type profileAvailabilityFields struct {
	Hour   int    `json:"hour"`
	Date   string `json:"date"`
	UserID string `json:"user_id"`
	User   string `json:"user"`
	Email  string `json:"email"`
}

var profileAvailabilityKeys = []string{"hour", "date", "user_id", "user", "email"}

func (p *ProfileAvailability) UnmarshalJSON(data []byte) error {
	var fields profileAvailabilityFields

	err := json.Unmarshal(data, &fields)
	if err != nil {
		return err
	}

	var profiles map[string]any

	err = json.Unmarshal(data, &profiles)
	if err != nil {
		return err
	}

	for _, key := range profileAvailabilityKeys {
		delete(profiles, key)
	}

	p.Hour = fields.Hour
	p.Date = fields.Date
	p.UserID = fields.UserID
	p.User = fields.User
	p.Email = fields.Email
	p.Profiles = profiles

	return nil
}

func (p ProfileAvailability) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(p.Profiles)+len(profileAvailabilityKeys))
	for key, value := range p.Profiles {
		flat[key] = value
	}

	flat["hour"] = p.Hour
	flat["date"] = p.Date
	flat["user_id"] = p.UserID
	flat["user"] = p.User
	flat["email"] = p.Email

	return json.Marshal(flat)
}
