// Package calendar implements the scheduling tools exposed to the model:
// availability lookup, booking and range cancellation.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-agent/internal/model"
	"github.com/capitalize-ai/scheduling-agent/internal/store"
	"github.com/capitalize-ai/scheduling-agent/internal/timeutil"
	"github.com/capitalize-ai/scheduling-agent/internal/tools"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
	"github.com/capitalize-ai/scheduling-agent/pkg/metrics"
)

const (
	// MeetingDuration is the fixed length of meetings booked by the agent.
	MeetingDuration = 30 * time.Minute
	// DefaultMaxCancelRange bounds a single cancellation sweep.
	DefaultMaxCancelRange = 366 * 24 * time.Hour
	// BookedDescription marks events created through the chat agent.
	BookedDescription = "Booked via AI"
)

// EventStore is the persistence the calendar tools need.
type EventStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.Event, error)
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	Delete(ctx context.Context, userID string, id uint) error
}

// Option configures a Service.
type Option func(*Service)

// WithMaxCancelRange overrides DefaultMaxCancelRange. Non-positive values are
// ignored.
func WithMaxCancelRange(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxCancelRange = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// Service answers calendar tool calls for one user at a time. It keeps no
// state between calls.
type Service struct {
	events         EventStore
	maxCancelRange time.Duration
	log            *logger.Logger
}

// NewService creates a calendar service backed by events.
func NewService(events EventStore, opts ...Option) *Service {
	s := &Service{
		events:         events,
		maxCancelRange: DefaultMaxCancelRange,
		log:            logger.Global(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// slot is a stored event with its parsed bounds.
type slot struct {
	event model.Event
	start time.Time
	end   time.Time
}

// eventsBetween returns the user's events whose start lies in [from, to],
// ordered by start. Rows with unparseable timestamps are skipped.
func (s *Service) eventsBetween(ctx context.Context, userID string, from, to time.Time) ([]slot, error) {
	events, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []slot
	for _, e := range events {
		start, err := e.StartTime()
		if err != nil {
			s.log.Warn("skipping event with bad start", zap.Uint("event_id", e.ID), zap.Error(err))
			continue
		}
		end, err := e.EndTime()
		if err != nil {
			s.log.Warn("skipping event with bad end", zap.Uint("event_id", e.ID), zap.Error(err))
			continue
		}
		if timeutil.InRange(start, from, to) {
			out = append(out, slot{event: e, start: start, end: end})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out, nil
}

// CheckAvailability lists the busy slots on the calendar day named by date.
func (s *Service) CheckAvailability(ctx context.Context, sess tools.Session, date string) string {
	loc := sessionZone(sess)
	day, err := timeutil.Parse(date, loc)
	if err != nil {
		return "Invalid date format."
	}
	// An offset-qualified value names whichever local day it falls on.
	from := timeutil.FloorDay(day, loc)
	date = from.Format(timeutil.DateLayout)

	slots, err := s.eventsBetween(ctx, sess.UserID, from, timeutil.CeilDay(day, loc))
	if err != nil {
		s.log.Error("availability lookup failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return databaseError(err)
	}
	if len(slots) == 0 {
		return fmt.Sprintf("The entire day of %s is free.", date)
	}

	busy := make([]string, len(slots))
	for i, sl := range slots {
		busy[i] = timeutil.Format(sl.start.In(loc), timeutil.ClockLayout) + "-" +
			timeutil.Format(sl.end.In(loc), timeutil.ClockLayout)
	}
	return fmt.Sprintf("Busy slots on %s (%s): %s.", date, loc.String(), strings.Join(busy, ", "))
}

// BookMeeting creates a MeetingDuration event starting at startISO.
func (s *Service) BookMeeting(ctx context.Context, sess tools.Session, startISO, title string) string {
	loc := sessionZone(sess)
	start, err := timeutil.Parse(startISO, loc)
	if err != nil {
		return fmt.Sprintf("Invalid time format: %s", startISO)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "A meeting title is required."
	}

	event := &model.Event{
		UserID:      sess.UserID,
		Summary:     title,
		Start:       start.Format(time.RFC3339),
		End:         start.Add(MeetingDuration).Format(time.RFC3339),
		Description: BookedDescription,
		Status:      model.EventStatusConfirmed,
	}
	if _, err := s.events.Create(ctx, event); err != nil {
		s.log.Error("booking failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return databaseError(err)
	}
	metrics.EventsBookedTotal.WithLabelValues("agent").Inc()

	return fmt.Sprintf("OK. Meeting '%s' booked for %s (%s).",
		title, timeutil.Format(start.In(loc), timeutil.DateTimeLayout), loc.String())
}

// CancelMeetings deletes every event starting between the first instant of
// startDate and the last instant of endDate whose summary contains keyword.
// An empty endDate means the same day as startDate; an empty or "none"
// keyword matches every title.
func (s *Service) CancelMeetings(ctx context.Context, sess tools.Session, startDate, endDate, keyword string) string {
	loc := sessionZone(sess)
	startDate = strings.TrimSpace(startDate)
	endDate = strings.TrimSpace(endDate)
	if endDate == "" || strings.EqualFold(endDate, "none") {
		endDate = startDate
	}

	first, err := timeutil.Parse(startDate, loc)
	if err != nil {
		return "Invalid date format."
	}
	last, err := timeutil.Parse(endDate, loc)
	if err != nil {
		return "Invalid date format."
	}

	from := timeutil.FloorDay(first, loc)
	to := timeutil.CeilDay(last, loc)
	if to.Before(from) {
		return fmt.Sprintf("The end date %s is before the start date %s.", endDate, startDate)
	}
	if to.Sub(from) > s.maxCancelRange {
		return fmt.Sprintf("That range is longer than %d days. Please narrow the dates and try again.",
			int(s.maxCancelRange/(24*time.Hour)))
	}

	keyword = strings.TrimSpace(keyword)
	if strings.EqualFold(keyword, "none") {
		keyword = ""
	}

	slots, err := s.eventsBetween(ctx, sess.UserID, from, to)
	if err != nil {
		s.log.Error("cancel lookup failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return databaseError(err)
	}

	var matched []slot
	for _, sl := range slots {
		if keyword == "" || strings.Contains(strings.ToLower(sl.event.Summary), strings.ToLower(keyword)) {
			matched = append(matched, sl)
		}
	}
	if len(matched) == 0 {
		msg := fmt.Sprintf("No meetings found between %s and %s", startDate, endDate)
		if keyword != "" {
			msg += fmt.Sprintf(" matching '%s'", keyword)
		}
		return msg + "."
	}

	canceled := make([]string, 0, len(matched))
	for _, sl := range matched {
		if err := s.events.Delete(ctx, sess.UserID, sl.event.ID); err != nil {
			s.log.Error("cancel failed",
				zap.String("user_id", sess.UserID),
				zap.Uint("event_id", sl.event.ID),
				zap.Int("canceled", len(canceled)),
				zap.Error(err),
			)
			return fmt.Sprintf("%s (canceled %d of %d meeting(s) first).", strings.TrimSuffix(databaseError(err), "."), len(canceled), len(matched))
		}
		metrics.EventsCanceledTotal.Inc()
		canceled = append(canceled, fmt.Sprintf("'%s' on %s", sl.event.Summary,
			timeutil.Format(sl.start.In(loc), timeutil.DateTimeLayout)))
	}

	return fmt.Sprintf("OK. Canceled %d meeting(s): %s.", len(canceled), strings.Join(canceled, ", "))
}

// ListEvents returns every event owned by userID.
func (s *Service) ListEvents(ctx context.Context, userID string) ([]model.Event, error) {
	events, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// CreateEvent stores a manually supplied event. Naive timestamps are read in
// the session zone and persisted offset-qualified.
func (s *Service) CreateEvent(ctx context.Context, sess tools.Session, req model.CreateEventRequest) (*model.Event, error) {
	loc := sessionZone(sess)
	start, err := timeutil.Parse(req.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: start: %w", store.ErrInvalidEvent, err)
	}
	end, err := timeutil.Parse(req.End, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: end: %w", store.ErrInvalidEvent, err)
	}

	event, err := s.events.Create(ctx, &model.Event{
		UserID:      sess.UserID,
		Summary:     strings.TrimSpace(req.Summary),
		Start:       start.Format(time.RFC3339),
		End:         end.Format(time.RFC3339),
		Description: req.Description,
		Status:      model.EventStatusConfirmed,
	})
	if err != nil {
		return nil, err
	}
	metrics.EventsBookedTotal.WithLabelValues("api").Inc()
	return event, nil
}

func sessionZone(sess tools.Session) *time.Location {
	if sess.Location == nil {
		return time.UTC
	}
	return sess.Location
}

func databaseError(err error) string {
	msg := err.Error()
	if errors.Is(err, store.ErrStorage) {
		msg = strings.TrimPrefix(msg, store.ErrStorage.Error()+": ")
	}
	return "Database Error: " + msg
}
