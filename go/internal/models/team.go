package models

import "github.com/google/uuid"

// Team represents a drafting team. Slot is the team's fixed draft position
// (1..teamCount); immutable once the session starts.
type Team struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slot int       `json:"slot"`
}
