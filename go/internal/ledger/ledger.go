// Package ledger holds the ordered, append-only record of confirmed picks for
// one session. It is the single source of truth for who has been drafted.
package ledger

import (
	"errors"
	"fmt"

	"github.com/mcdev12/draftroom/go/internal/draftcalc"
	"github.com/mcdev12/draftroom/go/internal/models"
)

var (
	// ErrOutOfSequence means the pick number would create a gap or rewrite
	// history. The caller should retry with the current pick number or wait.
	ErrOutOfSequence = errors.New("pick number out of sequence")
	// ErrDuplicatePlayer means the player is already drafted somewhere in the
	// ledger.
	ErrDuplicatePlayer = errors.New("player already drafted")
)

// Ledger is an append-only ordered collection of picks. It is not safe for
// concurrent use; the session App serializes access per session.
type Ledger struct {
	teamCount int
	picks     []models.Pick
	byPlayer  map[string]int // player ID -> pick number
}

// New creates an empty ledger for a draft with the given team count.
func New(teamCount int) *Ledger {
	return &Ledger{
		teamCount: teamCount,
		byPlayer:  make(map[string]int),
	}
}

// Append records a confirmed pick. The pick number must be exactly one past
// the last appended pick and the player must not already appear in the ledger.
// The round is derived and stored on the way in so it can never be set
// inconsistently by callers.
func (l *Ledger) Append(pick models.Pick) error {
	if pick.Number != len(l.picks)+1 {
		return fmt.Errorf("%w: got %d, next is %d", ErrOutOfSequence, pick.Number, len(l.picks)+1)
	}
	if prior, taken := l.byPlayer[pick.Player.ID]; taken {
		return fmt.Errorf("%w: %s at pick %d", ErrDuplicatePlayer, pick.Player.ID, prior)
	}

	round, _, err := draftcalc.SlotOnClock(pick.Number, l.teamCount)
	if err != nil {
		return err
	}
	pick.Round = round

	l.picks = append(l.picks, pick)
	l.byPlayer[pick.Player.ID] = pick.Number
	return nil
}

// Len returns the number of confirmed picks.
func (l *Ledger) Len() int {
	return len(l.picks)
}

// Snapshot returns a copy of all confirmed picks in order.
func (l *Ledger) Snapshot() []models.Pick {
	out := make([]models.Pick, len(l.picks))
	copy(out, l.picks)
	return out
}

// PlayerDrafted reports whether the player already appears in the ledger.
func (l *Ledger) PlayerDrafted(playerID string) bool {
	_, ok := l.byPlayer[playerID]
	return ok
}

// RosterFor returns the picks belonging to the given draft slot. The slot is
// derived from each pick's number, never stored per pick, so roster views
// cannot skew from the turn order.
func (l *Ledger) RosterFor(slot int) ([]models.Pick, error) {
	var roster []models.Pick
	for _, pick := range l.picks {
		_, pickSlot, err := draftcalc.SlotOnClock(pick.Number, l.teamCount)
		if err != nil {
			return nil, err
		}
		if pickSlot == slot {
			roster = append(roster, pick)
		}
	}
	return roster, nil
}
