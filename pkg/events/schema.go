package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/matcher/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of event
type EventType string

const (
	EventTypeObjectCreated  EventType = "object.created"
	EventTypeObjectAttached EventType = "object.attached"
	EventTypeObjectMerged   EventType = "object.merged"
)

// EventTypeFor maps a resolver decision to its event. Deferred decisions have none.
func EventTypeFor(kind models.DecisionKind) (EventType, bool) {
	switch kind {
	case models.DecisionCreate:
		return EventTypeObjectCreated, true
	case models.DecisionAttach:
		return EventTypeObjectAttached, true
	case models.DecisionMerge:
		return EventTypeObjectMerged, true
	}
	return "", false
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	WorkerID      string    `json:"worker_id,omitempty"`
	JobID         string    `json:"job_id,omitempty"`
}

// ObjectEvent reports one resolver decision about a canonical object.
type ObjectEvent struct {
	BaseEvent
	ScrapID    int64   `json:"scrap_id"`
	PlatformID int64   `json:"platform_id"`
	ObjectID   int64   `json:"object_id"`
	ObjectType string  `json:"object_type"`
	LinkID     int64   `json:"link_id,omitempty"`
	ExternalID string  `json:"external_id"`
	Losers     []int64 `json:"losers,omitempty"`
	Exact      bool    `json:"exact,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC(),
	}
}
