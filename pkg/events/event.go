package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event type codes
const (
	TypeDocumentIngested = "DOCUMENT_INGESTED"
	TypeSessionReset     = "SESSION_RESET"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "DOCUMENT_INGESTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher delivers events to a bus. Publishing is best effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// BaseEvent is the one concrete Event used across the service.
type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// DocumentIngested announces a document newly attached to a session.
func DocumentIngested(sessionID, documentID, filename string, chunks int, reused bool) BaseEvent {
	return BaseEvent{
		Type: TypeDocumentIngested,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"document_id": documentID,
			"filename":    filename,
			"chunks":      chunks,
			"reused":      reused,
		},
		OccurredAt: time.Now(),
	}
}

func SessionReset(sessionID string) BaseEvent {
	return BaseEvent{
		Type:       TypeSessionReset,
		Data:       map[string]interface{}{"session_id": sessionID},
		OccurredAt: time.Now(),
	}
}

// Encode is the wire form shared by every transport.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
}

func Decode(data []byte) (BaseEvent, error) {
	var e BaseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return BaseEvent{}, err
	}
	if e.Type == "" {
		return BaseEvent{}, errors.New("event without type")
	}
	return e, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}

// FanOut publishes to every publisher and joins their errors.
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
