package session

import "errors"

var (
	// ErrSessionNotFound means no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyStarted means StartDraft was called on a session that already
	// left not_started.
	ErrAlreadyStarted = errors.New("draft already started")
	// ErrNotStarted means the operation requires a started draft.
	ErrNotStarted = errors.New("draft not started")
	// ErrSessionCompleted means the draft is over and accepts no further
	// mutation.
	ErrSessionCompleted = errors.New("draft already completed")
	// ErrStaleProposal means the proposal targets a pick number other than the
	// current pointer: already resolved, or not yet reachable.
	ErrStaleProposal = errors.New("proposal does not match current pick")
)
