// Package recommend defines the pick recommendation port and an HTTP-backed
// implementation. Recommendations are advisory; the draft proceeds fine with
// none configured.
package recommend

import (
	"context"

	"github.com/mcdev12/draftroom/go/internal/models"
)

// RankedPlayer is one recommendation with its rank score, best first.
type RankedPlayer struct {
	Player models.Player `json:"player"`
	Score  float64       `json:"score"`
	Reason string        `json:"reason,omitempty"`
}

// Port produces ranked draft suggestions for the user's roster given the
// session state so far. Implementations must not mutate the snapshot.
type Port interface {
	Recommend(ctx context.Context, snapshot *models.SessionSnapshot, limit int) ([]RankedPlayer, error)
}
