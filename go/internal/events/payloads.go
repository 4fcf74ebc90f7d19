package events

import (
	"time"

	"github.com/mcdev12/draftroom/go/internal/models"
)

// Event payload types shared between the session app, hub, gateway and relay.

// PickMadePayload is the payload for a pick_made event.
type PickMadePayload struct {
	PickNumber int               `json:"pick_number"`
	Round      int               `json:"round"`
	TeamSlot   int               `json:"team_slot"`
	Player     models.Player     `json:"player"`
	Source     models.PickSource `json:"source"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// UserOnClockPayload is the payload for a user_on_clock event, emitted when
// the newly computed on-clock slot equals the user's slot.
type UserOnClockPayload struct {
	PickNumber int `json:"pick_number"`
	Round      int `json:"round"`
}

// StatusChangePayload is the payload for a status_change event.
type StatusChangePayload struct {
	NewStatus models.SessionStatus `json:"new_status"`
}

// SyncErrorPayload is the payload for a sync_error event.
type SyncErrorPayload struct {
	Reason string `json:"reason"`
}
