package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/scheduling-agent/internal/middleware"
	"github.com/capitalize-ai/scheduling-agent/internal/model"
	"github.com/capitalize-ai/scheduling-agent/internal/store"
	"github.com/capitalize-ai/scheduling-agent/internal/tools"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
)

const icsProductID = "-//capitalize-ai//scheduling-agent//EN"

// EventService lists and creates events for a user.
type EventService interface {
	ListEvents(ctx context.Context, userID string) ([]model.Event, error)
	CreateEvent(ctx context.Context, sess tools.Session, req model.CreateEventRequest) (*model.Event, error)
}

// EventHandler handles the direct calendar endpoints.
type EventHandler struct {
	events EventService
	logger *logger.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(events EventService, log *logger.Logger) *EventHandler {
	return &EventHandler{events: events, logger: log}
}

// List handles GET /events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	events, err := h.events.ListEvents(r.Context(), userID)
	if err != nil {
		middleware.RequestLogger(r.Context(), h.logger).Error("failed to list events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// Create handles POST /create-event
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateTitle(req.Summary); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := tools.Session{
		UserID:   middleware.GetUserID(r.Context()),
		Location: middleware.GetLocation(r.Context()),
	}
	event, err := h.events.CreateEvent(r.Context(), sess, req)
	if err != nil {
		if errors.Is(err, store.ErrInvalidEvent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		middleware.RequestLogger(r.Context(), h.logger).Error("failed to create event", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	writeJSON(w, http.StatusOK, model.CreateEventResponse{Status: "success", ID: event.ID})
}

// ICS handles GET /events.ics
func (h *EventHandler) ICS(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	log := middleware.RequestLogger(r.Context(), h.logger)

	events, err := h.events.ListEvents(r.Context(), userID)
	if err != nil {
		log.Error("failed to list events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	cal := buildCalendar(userID, events, time.Now(), log)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		log.Error("failed to encode calendar", zap.Error(err))
	}
}

// buildCalendar renders events as a VCALENDAR. Times are written in UTC so no
// VTIMEZONE components are needed.
func buildCalendar(userID string, events []model.Event, stamp time.Time, log *logger.Logger) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	for _, e := range events {
		start, err := e.StartTime()
		if err != nil {
			log.Warn("skipping event with bad start", zap.Uint("event_id", e.ID), zap.Error(err))
			continue
		}
		end, err := e.EndTime()
		if err != nil {
			log.Warn("skipping event with bad end", zap.Uint("event_id", e.ID), zap.Error(err))
			continue
		}

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, eventUID(userID, e.ID))
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
		event.Props.SetText(ical.PropSummary, e.Summary)
		if e.Description != "" {
			event.Props.SetText(ical.PropDescription, e.Description)
		}
		if e.Status == model.EventStatusConfirmed {
			event.Props.SetText(ical.PropStatus, "CONFIRMED")
		}
		cal.Children = append(cal.Children, event.Component)
	}
	return cal
}

// eventUID is stable per user and event id.
func eventUID(userID string, id uint) string {
	name := fmt.Sprintf("%s/%d", userID, id)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String() + "@scheduling-agent"
}
