// Package reconcile funnels pick proposals from the live feed and manual entry
// into the session state machine through one entry point, buffering
// out-of-order live picks until they become reachable.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/ledger"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/session"
	"github.com/rs/zerolog/log"
)

// ErrPendingOverflow means the out-of-order buffer for a session is full and
// the proposal was discarded. The feed will redeliver.
var ErrPendingOverflow = errors.New("pending pick buffer full")

// DefaultMaxPending bounds the per-session out-of-order buffer. The live feed
// only ever runs a handful of picks ahead of the UI, so a small set suffices.
const DefaultMaxPending = 32

// SessionApp defines what the adapter needs from the session state machine.
type SessionApp interface {
	ApplyPick(ctx context.Context, id uuid.UUID, proposal models.PickProposal) error
	CurrentPick(id uuid.UUID) (int, error)
	Status(id uuid.UUID) (models.SessionStatus, error)
	MarkSyncError(ctx context.Context, id uuid.UUID, reason string) error
	ClearSyncError(ctx context.Context, id uuid.UUID) error
}

// Adapter validates and de-duplicates proposals from both sources before they
// reach the state machine. First writer wins: once a pick number resolves, any
// later proposal for it errors rather than overwriting.
type Adapter struct {
	app        SessionApp
	maxPending int

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingSet
}

// pendingSet buffers live-feed proposals that arrived ahead of the current
// pick. Its mutex also serializes proposal processing per session.
type pendingSet struct {
	mu    sync.Mutex
	picks map[int]models.PickProposal
}

// NewAdapter creates a reconciliation adapter. maxPending <= 0 selects
// DefaultMaxPending.
func NewAdapter(app SessionApp) *Adapter {
	return &Adapter{
		app:        app,
		maxPending: DefaultMaxPending,
		pending:    make(map[uuid.UUID]*pendingSet),
	}
}

// Propose routes a proposal from either source through validation into the
// state machine.
//
// Live proposals ahead of the current pick are buffered (non-blocking) and the
// caller still receives ErrOutOfSequence; they apply automatically once
// earlier picks resolve. Proposals behind the current pick return
// ErrStaleProposal. Manual proposals are never buffered.
func (a *Adapter) Propose(ctx context.Context, sessionID uuid.UUID, proposal models.PickProposal) error {
	ps := a.pendingFor(sessionID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	current, err := a.app.CurrentPick(sessionID)
	if err != nil {
		return err
	}

	switch {
	case proposal.Number < current:
		return fmt.Errorf("%w: proposed %d, current %d", session.ErrStaleProposal, proposal.Number, current)

	case proposal.Number > current:
		if proposal.Source == models.PickSourceLive {
			if err := ps.buffer(proposal, a.maxPending); err != nil {
				return err
			}
			log.Debug().
				Str("session_id", sessionID.String()).
				Int("pick_number", proposal.Number).
				Int("current_pick", current).
				Msg("buffered out-of-order live proposal")
		}
		return fmt.Errorf("%w: proposed %d, current %d", ledger.ErrOutOfSequence, proposal.Number, current)
	}

	if err := a.app.ApplyPick(ctx, sessionID, proposal); err != nil {
		return err
	}

	a.drainLocked(ctx, sessionID, ps)
	a.releaseIfCompleted(sessionID, ps)
	return nil
}

// ReportSyncError flags the session's live feed as down. Manual proposals keep
// flowing while degraded.
func (a *Adapter) ReportSyncError(ctx context.Context, sessionID uuid.UUID, reason string) error {
	return a.app.MarkSyncError(ctx, sessionID, reason)
}

// ReportSyncRecovered clears the degraded state and drains anything the feed
// buffered in the meantime. Picks resolved manually while degraded are never
// replayed; buffered entries at or below the pointer are pruned instead.
func (a *Adapter) ReportSyncRecovered(ctx context.Context, sessionID uuid.UUID) error {
	if err := a.app.ClearSyncError(ctx, sessionID); err != nil {
		return err
	}

	ps := a.pendingFor(sessionID)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	a.drainLocked(ctx, sessionID, ps)
	a.releaseIfCompleted(sessionID, ps)
	return nil
}

// PendingCount reports how many live proposals are buffered for a session.
func (a *Adapter) PendingCount(sessionID uuid.UUID) int {
	ps := a.pendingFor(sessionID)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.picks)
}

// Forget releases the pending buffer for a finished or abandoned session.
func (a *Adapter) Forget(sessionID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, sessionID)
}

// releaseIfCompleted drops the pending buffer once the draft finishes so a
// completed session holds no proposal state. Caller holds ps.mu.
func (a *Adapter) releaseIfCompleted(sessionID uuid.UUID, ps *pendingSet) {
	status, err := a.app.Status(sessionID)
	if err != nil || status != models.SessionStatusCompleted {
		return
	}
	ps.picks = make(map[int]models.PickProposal)
	a.Forget(sessionID)
}

func (a *Adapter) pendingFor(sessionID uuid.UUID) *pendingSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	ps, ok := a.pending[sessionID]
	if !ok {
		ps = &pendingSet{picks: make(map[int]models.PickProposal)}
		a.pending[sessionID] = ps
	}
	return ps
}

// drainLocked applies buffered proposals strictly in increasing pick order for
// as long as the buffer holds the current pick. Undraftable entries (player
// already taken) are dropped so they cannot stall the drain; stale entries are
// pruned. Caller holds ps.mu.
func (a *Adapter) drainLocked(ctx context.Context, sessionID uuid.UUID, ps *pendingSet) {
	for {
		current, err := a.app.CurrentPick(sessionID)
		if err != nil {
			return
		}
		ps.prune(current)

		proposal, ok := ps.picks[current]
		if !ok {
			return
		}
		delete(ps.picks, current)

		if err := a.app.ApplyPick(ctx, sessionID, proposal); err != nil {
			if errors.Is(err, session.ErrSessionCompleted) {
				// Everything still buffered is unreachable now; the caller
				// releases the buffer.
				return
			}
			if errors.Is(err, ledger.ErrDuplicatePlayer) || errors.Is(err, session.ErrStaleProposal) {
				log.Warn().
					Err(err).
					Str("session_id", sessionID.String()).
					Int("pick_number", proposal.Number).
					Msg("dropping undraftable buffered proposal")
				continue
			}
			log.Error().
				Err(err).
				Str("session_id", sessionID.String()).
				Int("pick_number", proposal.Number).
				Msg("failed to apply buffered proposal")
			return
		}

		log.Info().
			Str("session_id", sessionID.String()).
			Int("pick_number", proposal.Number).
			Msg("applied buffered live proposal")
	}
}

func (ps *pendingSet) buffer(proposal models.PickProposal, maxPending int) error {
	// First proposal for a number keeps its buffer slot.
	if _, exists := ps.picks[proposal.Number]; exists {
		return nil
	}
	if len(ps.picks) >= maxPending {
		return fmt.Errorf("%w: %d buffered", ErrPendingOverflow, len(ps.picks))
	}
	ps.picks[proposal.Number] = proposal
	return nil
}

func (ps *pendingSet) prune(current int) {
	for number := range ps.picks {
		if number < current {
			delete(ps.picks, number)
		}
	}
}
