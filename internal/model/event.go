// Package model defines data structures for the scheduling agent.
package model

import (
	"time"
)

// EventStatus is the lifecycle state of a calendar event.
type EventStatus string

const (
	EventStatusConfirmed EventStatus = "confirmed"
)

// Event is one scheduled meeting owned by a single user. Start and End are
// offset-qualified RFC3339 strings.
type Event struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	UserID      string      `json:"user_id" gorm:"index;not null"`
	Summary     string      `json:"summary" gorm:"not null"`
	Start       string      `json:"start" gorm:"column:start_time;not null"`
	End         string      `json:"end" gorm:"column:end_time;not null"`
	Description string      `json:"description"`
	Status      EventStatus `json:"status" gorm:"not null"`
}

// TableName pins the table name.
func (Event) TableName() string {
	return "events"
}

// StartTime parses Start.
func (e *Event) StartTime() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Start)
}

// EndTime parses End.
func (e *Event) EndTime() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.End)
}

// CreateEventRequest is the request to create an event directly.
type CreateEventRequest struct {
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description,omitempty"`
}

// CreateEventResponse is the response after creating an event.
type CreateEventResponse struct {
	Status string `json:"status"`
	ID     uint   `json:"id"`
}
