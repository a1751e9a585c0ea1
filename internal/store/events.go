package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/capitalize-ai/scheduling-agent/internal/model"
)

// ErrInvalidEvent is returned when an event is missing fields or ends before it starts.
var ErrInvalidEvent = errors.New("invalid event")

// EventStore handles per-user event persistence.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates a new event store.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db.gorm}
}

// ListByUser returns all events owned by userID ordered by id.
func (s *EventStore) ListByUser(ctx context.Context, userID string) ([]model.Event, error) {
	var events []model.Event
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list events: %v", ErrStorage, err)
	}
	return events, nil
}

// Create validates and persists event, populating its ID. The insert runs in
// its own transaction and is rolled back on failure.
func (s *EventStore) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	if event.Status == "" {
		event.Status = model.EventStatusConfirmed
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create event: %v", ErrStorage, err)
	}
	return event, nil
}

// Delete removes one event owned by userID. Deleting a missing id is a no-op.
func (s *EventStore) Delete(ctx context.Context, userID string, id uint) error {
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Event{}).Error
	if err != nil {
		return fmt.Errorf("%w: failed to delete event %d: %v", ErrStorage, id, err)
	}
	return nil
}

func validateEvent(event *model.Event) error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidEvent)
	}
	if strings.TrimSpace(event.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(event.Summary) == "" {
		return fmt.Errorf("%w: summary is required", ErrInvalidEvent)
	}
	start, err := event.StartTime()
	if err != nil {
		return fmt.Errorf("%w: start: %v", ErrInvalidEvent, err)
	}
	end, err := event.EndTime()
	if err != nil {
		return fmt.Errorf("%w: end: %v", ErrInvalidEvent, err)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidEvent)
	}
	return nil
}
