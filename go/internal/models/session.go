package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncMode defines where pick proposals for a session come from.
type SyncMode string

const (
	SyncModeLive   SyncMode = "LIVE_SYNC"
	SyncModeManual SyncMode = "MANUAL"
)

// SessionStatus defines the lifecycle status of a draft session.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusSyncError  SessionStatus = "SYNC_ERROR"
)

// DraftSession represents a draft in progress for one connected league.
// Mutated exclusively through the session App; everything else reads snapshots.
type DraftSession struct {
	ID          uuid.UUID     `json:"id"`
	TeamCount   int           `json:"team_count"`
	TotalRounds int           `json:"total_rounds"`
	UserSlot    int           `json:"user_slot"`
	SyncMode    SyncMode      `json:"sync_mode"`
	Status      SessionStatus `json:"status"`
	CurrentPick int           `json:"current_pick"`
	Teams       []Team        `json:"teams,omitempty"`

	// Derived fields, recomputed on every pick advance.
	CurrentRound       int `json:"current_round"`
	NextUserPick       int `json:"next_user_pick"`
	PicksUntilUserTurn int `json:"picks_until_user_turn"`

	SyncErrorReason string     `json:"sync_error_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// SessionSnapshot is an immutable view of a session and its confirmed picks.
type SessionSnapshot struct {
	Session DraftSession `json:"session"`
	Picks   []Pick       `json:"picks"`

	// Seq is the sequence number of the last event already reflected in the
	// snapshot. Streamed events with Seq at or below it are duplicates.
	Seq uint64 `json:"seq"`
}
