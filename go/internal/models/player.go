package models

// Player identifies a draftable player. IDs come from the upstream provider
// (ESPN/Yahoo) and are opaque strings here.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
}
