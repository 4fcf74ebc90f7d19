package models

import "time"

// PickSource defines which channel produced a pick.
type PickSource string

const (
	PickSourceLive   PickSource = "live"
	PickSourceManual PickSource = "manual"
)

// Pick represents a single confirmed pick in a session ledger.
// The team slot is never stored; it is always derived from Number via draftcalc
// so the two can never diverge.
type Pick struct {
	Number     int        `json:"number"`
	Round      int        `json:"round"` // derived from Number on append
	Player     Player     `json:"player"`
	Source     PickSource `json:"source"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// PickProposal is a candidate pick submitted by the live feed or a manual form.
// It only becomes a Pick once the session App accepts it.
type PickProposal struct {
	Number int        `json:"number"`
	Player Player     `json:"player"`
	Source PickSource `json:"source"`
}
