package session

import (
	"github.com/mcdev12/draftroom/go/internal/models"
)

// CreateSessionRequest carries the parameters for a new draft session.
type CreateSessionRequest struct {
	TeamCount   int             `json:"team_count"`
	TotalRounds int             `json:"total_rounds"`
	UserSlot    int             `json:"user_slot"`
	SyncMode    models.SyncMode `json:"sync_mode"`
	Teams       []models.Team   `json:"teams,omitempty"`
}
