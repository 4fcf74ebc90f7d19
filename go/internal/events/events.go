package events

import (
	"encoding/json"
	"time"
)

// Event is the envelope pushed to every subscriber of a session. Seq is
// monotonically increasing per session for the lifetime of the process; no
// ordering guarantee is made across a subscriber's disconnect boundary.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Seq       uint64          `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of session event.
type EventType string

const (
	EventTypePickMade     EventType = "pick_made"
	EventTypeUserOnClock  EventType = "user_on_clock"
	EventTypeStatusChange EventType = "status_change"
	EventTypeSyncError    EventType = "sync_error"
)

// ParseEventPayload parses event data into the appropriate payload struct.
func ParseEventPayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventTypePickMade:
		var payload PickMadePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeUserOnClock:
		var payload UserOnClockPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeStatusChange:
		var payload StatusChangePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSyncError:
		var payload SyncErrorPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
