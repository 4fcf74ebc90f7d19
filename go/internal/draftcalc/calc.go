// Package draftcalc is the single source of snake-order arithmetic.
// Every component that needs a round, a slot on the clock, or the user's next
// pick goes through here; nothing else in the codebase inlines this math.
package draftcalc

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for out-of-range draft parameters.
var ErrInvalidConfig = errors.New("invalid draft configuration")

// NoUserPick is the sentinel returned by NextUserPick when the user has no
// remaining pick within the draft.
const NoUserPick = -1

// TotalPicks returns the number of picks in a full draft.
func TotalPicks(teamCount, totalRounds int) int {
	return teamCount * totalRounds
}

// Round returns the 1-based round containing the given overall pick number.
func Round(pickNumber, teamCount int) (int, error) {
	if teamCount <= 0 {
		return 0, fmt.Errorf("%w: team count %d", ErrInvalidConfig, teamCount)
	}
	if pickNumber < 1 {
		return 0, fmt.Errorf("%w: pick number %d", ErrInvalidConfig, pickNumber)
	}
	return (pickNumber-1)/teamCount + 1, nil
}

// SlotOnClock maps an overall pick number to its round and the draft slot on
// the clock under snake ordering: odd rounds run 1..teamCount ascending, even
// rounds run teamCount..1 descending.
func SlotOnClock(pickNumber, teamCount int) (round, slot int, err error) {
	round, err = Round(pickNumber, teamCount)
	if err != nil {
		return 0, 0, err
	}

	offset := (pickNumber - 1) % teamCount
	if round%2 == 1 {
		slot = offset + 1
	} else {
		slot = teamCount - offset
	}
	return round, slot, nil
}

// NextUserPick scans forward from currentPick (inclusive) for the first pick
// number whose on-clock slot equals userSlot. Returns NoUserPick when no such
// pick remains within the draft.
func NextUserPick(currentPick, userSlot, teamCount, totalRounds int) (int, error) {
	if err := validateDraft(teamCount, totalRounds); err != nil {
		return 0, err
	}
	if userSlot < 1 || userSlot > teamCount {
		return 0, fmt.Errorf("%w: user slot %d with %d teams", ErrInvalidConfig, userSlot, teamCount)
	}
	if currentPick < 1 {
		return 0, fmt.Errorf("%w: pick number %d", ErrInvalidConfig, currentPick)
	}

	total := TotalPicks(teamCount, totalRounds)
	// Across the snake turn consecutive picks for a slot can be up to
	// 2*teamCount-1 apart, so the scan runs to the end of the draft.
	for pick := currentPick; pick <= total; pick++ {
		_, slot, err := SlotOnClock(pick, teamCount)
		if err != nil {
			return 0, err
		}
		if slot == userSlot {
			return pick, nil
		}
	}
	return NoUserPick, nil
}

// PicksUntilUserTurn returns how many picks must resolve before the user is on
// the clock (0 when the user is on the clock now), or NoUserPick when the user
// has no remaining pick.
func PicksUntilUserTurn(currentPick, userSlot, teamCount, totalRounds int) (int, error) {
	next, err := NextUserPick(currentPick, userSlot, teamCount, totalRounds)
	if err != nil {
		return 0, err
	}
	if next == NoUserPick {
		return NoUserPick, nil
	}
	return next - currentPick, nil
}

func validateDraft(teamCount, totalRounds int) error {
	if teamCount <= 0 {
		return fmt.Errorf("%w: team count %d", ErrInvalidConfig, teamCount)
	}
	if totalRounds <= 0 {
		return fmt.Errorf("%w: total rounds %d", ErrInvalidConfig, totalRounds)
	}
	return nil
}
