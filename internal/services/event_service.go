package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage"
	"github.com/rs/zerolog/log"
)

const defaultEventLimit = 20

// EventServiceProvider defines the interface for the activity log.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, courseID, userID *string) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// EventService records and lists activity events.
type EventService struct {
	store storage.Store
	now   func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(store storage.Store) *EventService {
	return &EventService{store: store, now: time.Now}
}

// CreateEvent logs a new event to the store.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, courseID, userID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		CourseID:  courseID,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return classify("create event", err)
	}
	return nil
}

// GetRecentEvents retrieves the most recent events, newest first.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	events, err := s.store.ListEvents(ctx, limit)
	if err != nil {
		return nil, classify("list events", err)
	}
	return events, nil
}

// recordEvent writes an activity event without failing the caller.
func recordEvent(ctx context.Context, events EventServiceProvider, eventType, level, message string, courseID, userID *string) {
	if events == nil {
		return
	}
	if err := events.CreateEvent(ctx, eventType, level, message, courseID, userID); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record activity event")
	}
}

func ptr(s string) *string { return &s }
