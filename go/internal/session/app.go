package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draftcalc"
	"github.com/mcdev12/draftroom/go/internal/events"
	"github.com/mcdev12/draftroom/go/internal/ledger"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// EventSink is what the app needs to broadcast state changes. Publish must be
// non-blocking; the hub satisfies this. CurrentSeq reports the last sequence
// number published for a session so snapshots can carry a watermark.
type EventSink interface {
	Publish(sessionID uuid.UUID, eventType events.EventType, payload interface{})
	CurrentSeq(sessionID uuid.UUID) uint64
}

// Repository defines what the app needs from session persistence. A nil
// repository is valid: the in-memory session stays canonical either way and
// repository failures are logged, never returned to pickers.
type Repository interface {
	InsertSession(ctx context.Context, session *models.DraftSession) error
	UpdateSessionState(ctx context.Context, session *models.DraftSession) error
	InsertPick(ctx context.Context, session *models.DraftSession, pick models.Pick) error
}

// App owns all draft session state. Every mutating call for a given session is
// serialized behind that session's mutex; distinct sessions proceed in
// parallel.
type App struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*liveSession

	sink  EventSink
	repo  Repository
	clock clockwork.Clock
}

type liveSession struct {
	mu     sync.Mutex
	model  models.DraftSession
	ledger *ledger.Ledger
}

// NewApp creates a session App. Pass clockwork.NewRealClock() in production
// and a FakeClock in tests.
func NewApp(sink EventSink, repo Repository, clock clockwork.Clock) *App {
	return &App{
		sessions: make(map[uuid.UUID]*liveSession),
		sink:     sink,
		repo:     repo,
		clock:    clock,
	}
}

// CreateSession registers a new session in not_started state.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.DraftSession, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	model := models.DraftSession{
		ID:                 uuid.New(),
		TeamCount:          req.TeamCount,
		TotalRounds:        req.TotalRounds,
		UserSlot:           req.UserSlot,
		SyncMode:           req.SyncMode,
		Status:             models.SessionStatusNotStarted,
		Teams:              append([]models.Team(nil), req.Teams...),
		NextUserPick:       draftcalc.NoUserPick,
		PicksUntilUserTurn: draftcalc.NoUserPick,
		CreatedAt:          a.clock.Now(),
	}

	a.mu.Lock()
	a.sessions[model.ID] = &liveSession{
		model:  model,
		ledger: ledger.New(req.TeamCount),
	}
	a.mu.Unlock()

	a.persist(ctx, func(r Repository) error { return r.InsertSession(ctx, &model) })

	log.Info().
		Str("session_id", model.ID.String()).
		Int("team_count", model.TeamCount).
		Int("total_rounds", model.TotalRounds).
		Int("user_slot", model.UserSlot).
		Str("sync_mode", string(model.SyncMode)).
		Msg("session created")

	out := cloneSession(model)
	return &out, nil
}

// StartDraft moves a session to in_progress at pick 1 and emits the initial
// events. Returns ErrAlreadyStarted on any second call.
func (a *App) StartDraft(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	ls, err := a.lookup(id)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.model.Status != models.SessionStatusNotStarted {
		return nil, fmt.Errorf("%w: status %s", ErrAlreadyStarted, ls.model.Status)
	}

	now := a.clock.Now()
	ls.model.Status = models.SessionStatusInProgress
	ls.model.CurrentPick = 1
	ls.model.StartedAt = &now
	if err := a.recomputeDerived(&ls.model); err != nil {
		return nil, err
	}

	a.persist(ctx, func(r Repository) error { return r.UpdateSessionState(ctx, &ls.model) })

	a.emit(id, events.EventTypeStatusChange, events.StatusChangePayload{NewStatus: ls.model.Status})
	a.emitUserOnClockIfDue(&ls.model)

	log.Info().Str("session_id", id.String()).Msg("draft started")

	out := cloneSession(ls.model)
	return &out, nil
}

// ApplyPick is the only path by which a proposal becomes a canonical pick.
// Ledger errors pass through unchanged; ErrStaleProposal is returned when the
// proposal does not target the current pick. The pointer advances by exactly
// one on success and never on failure.
func (a *App) ApplyPick(ctx context.Context, id uuid.UUID, proposal models.PickProposal) error {
	ls, err := a.lookup(id)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	switch ls.model.Status {
	case models.SessionStatusNotStarted:
		return ErrNotStarted
	case models.SessionStatusCompleted:
		return ErrSessionCompleted
	}

	if proposal.Number != ls.model.CurrentPick {
		return fmt.Errorf("%w: proposed %d, current %d", ErrStaleProposal, proposal.Number, ls.model.CurrentPick)
	}

	pick := models.Pick{
		Number:     proposal.Number,
		Player:     proposal.Player,
		Source:     proposal.Source,
		RecordedAt: a.clock.Now(),
	}
	if err := ls.ledger.Append(pick); err != nil {
		return err
	}

	round, slot, err := draftcalc.SlotOnClock(pick.Number, ls.model.TeamCount)
	if err != nil {
		return err
	}

	ls.model.CurrentPick++
	total := draftcalc.TotalPicks(ls.model.TeamCount, ls.model.TotalRounds)
	completed := ls.model.CurrentPick > total
	if completed {
		now := a.clock.Now()
		ls.model.Status = models.SessionStatusCompleted
		ls.model.CompletedAt = &now
		ls.model.SyncErrorReason = ""
	}
	if err := a.recomputeDerived(&ls.model); err != nil {
		return err
	}

	a.persist(ctx, func(r Repository) error { return r.InsertPick(ctx, &ls.model, pick) })

	a.emit(id, events.EventTypePickMade, events.PickMadePayload{
		PickNumber: pick.Number,
		Round:      round,
		TeamSlot:   slot,
		Player:     pick.Player,
		Source:     pick.Source,
		RecordedAt: pick.RecordedAt,
	})

	if completed {
		a.emit(id, events.EventTypeStatusChange, events.StatusChangePayload{NewStatus: models.SessionStatusCompleted})
		log.Info().Str("session_id", id.String()).Int("total_picks", total).Msg("draft completed")
	} else {
		a.emitUserOnClockIfDue(&ls.model)
	}

	return nil
}

// MarkSyncError flags the session's live feed as unreachable. The ledger is
// untouched and manual picks keep working while in this state.
func (a *App) MarkSyncError(ctx context.Context, id uuid.UUID, reason string) error {
	ls, err := a.lookup(id)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	switch ls.model.Status {
	case models.SessionStatusNotStarted:
		return ErrNotStarted
	case models.SessionStatusCompleted:
		return ErrSessionCompleted
	}

	ls.model.Status = models.SessionStatusSyncError
	ls.model.SyncErrorReason = reason

	a.persist(ctx, func(r Repository) error { return r.UpdateSessionState(ctx, &ls.model) })
	a.emit(id, events.EventTypeSyncError, events.SyncErrorPayload{Reason: reason})

	log.Warn().Str("session_id", id.String()).Str("reason", reason).Msg("session entered sync_error")
	return nil
}

// ClearSyncError recovers a session from sync_error back to in_progress.
// Calling it on a session already in_progress is a no-op; recovery never
// replays resolved picks.
func (a *App) ClearSyncError(ctx context.Context, id uuid.UUID) error {
	ls, err := a.lookup(id)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	switch ls.model.Status {
	case models.SessionStatusNotStarted:
		return ErrNotStarted
	case models.SessionStatusCompleted:
		return ErrSessionCompleted
	case models.SessionStatusInProgress:
		return nil
	}

	ls.model.Status = models.SessionStatusInProgress
	ls.model.SyncErrorReason = ""

	a.persist(ctx, func(r Repository) error { return r.UpdateSessionState(ctx, &ls.model) })
	a.emit(id, events.EventTypeStatusChange, events.StatusChangePayload{NewStatus: models.SessionStatusInProgress})

	log.Info().Str("session_id", id.String()).Msg("session recovered from sync_error")
	return nil
}

// Snapshot returns an immutable copy of the session and its confirmed picks.
// Seq is the sequence number of the last event whose effect the snapshot
// includes: all event emission happens under the session lock held here, so a
// streamed event belongs after the snapshot exactly when its Seq is greater.
func (a *App) Snapshot(id uuid.UUID) (*models.SessionSnapshot, error) {
	ls, err := a.lookup(id)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	var seq uint64
	if a.sink != nil {
		seq = a.sink.CurrentSeq(id)
	}
	return &models.SessionSnapshot{
		Session: cloneSession(ls.model),
		Picks:   ls.ledger.Snapshot(),
		Seq:     seq,
	}, nil
}

// Status returns the session's lifecycle status.
func (a *App) Status(id uuid.UUID) (models.SessionStatus, error) {
	ls, err := a.lookup(id)
	if err != nil {
		return "", err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.model.Status, nil
}

// CurrentPick returns the session's current pick pointer.
func (a *App) CurrentPick(id uuid.UUID) (int, error) {
	ls, err := a.lookup(id)
	if err != nil {
		return 0, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.model.CurrentPick, nil
}

// IsUserOnClock reports whether the current pick belongs to the user's slot.
func (a *App) IsUserOnClock(id uuid.UUID) (bool, error) {
	ls, err := a.lookup(id)
	if err != nil {
		return false, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.model.Status != models.SessionStatusInProgress && ls.model.Status != models.SessionStatusSyncError {
		return false, nil
	}
	_, slot, err := draftcalc.SlotOnClock(ls.model.CurrentPick, ls.model.TeamCount)
	if err != nil {
		return false, err
	}
	return slot == ls.model.UserSlot, nil
}

// RosterFor returns the confirmed picks belonging to a draft slot.
func (a *App) RosterFor(id uuid.UUID, slot int) ([]models.Pick, error) {
	ls, err := a.lookup(id)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if slot < 1 || slot > ls.model.TeamCount {
		return nil, fmt.Errorf("%w: slot %d with %d teams", draftcalc.ErrInvalidConfig, slot, ls.model.TeamCount)
	}
	return ls.ledger.RosterFor(slot)
}

// LiveSessionIDs returns the ids of every live-sync session that is still
// drafting. Used by the feed to degrade or recover all affected sessions on a
// transport-wide outage.
func (a *App) LiveSessionIDs() []uuid.UUID {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var ids []uuid.UUID
	for id, ls := range a.sessions {
		ls.mu.Lock()
		live := ls.model.SyncMode == models.SyncModeLive &&
			(ls.model.Status == models.SessionStatusInProgress || ls.model.Status == models.SessionStatusSyncError)
		ls.mu.Unlock()
		if live {
			ids = append(ids, id)
		}
	}
	return ids
}

func (a *App) lookup(id uuid.UUID) (*liveSession, error) {
	a.mu.RLock()
	ls, ok := a.sessions[id]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ls, nil
}

// recomputeDerived refreshes the cached round/next-user-pick fields from the
// current pick pointer. Must hold the session lock.
func (a *App) recomputeDerived(model *models.DraftSession) error {
	total := draftcalc.TotalPicks(model.TeamCount, model.TotalRounds)
	if model.CurrentPick > total {
		model.CurrentRound = model.TotalRounds
		model.NextUserPick = draftcalc.NoUserPick
		model.PicksUntilUserTurn = draftcalc.NoUserPick
		return nil
	}

	round, err := draftcalc.Round(model.CurrentPick, model.TeamCount)
	if err != nil {
		return err
	}
	next, err := draftcalc.NextUserPick(model.CurrentPick, model.UserSlot, model.TeamCount, model.TotalRounds)
	if err != nil {
		return err
	}

	model.CurrentRound = round
	model.NextUserPick = next
	if next == draftcalc.NoUserPick {
		model.PicksUntilUserTurn = draftcalc.NoUserPick
	} else {
		model.PicksUntilUserTurn = next - model.CurrentPick
	}
	return nil
}

func (a *App) emitUserOnClockIfDue(model *models.DraftSession) {
	_, slot, err := draftcalc.SlotOnClock(model.CurrentPick, model.TeamCount)
	if err != nil {
		return
	}
	if slot != model.UserSlot {
		return
	}
	a.emit(model.ID, events.EventTypeUserOnClock, events.UserOnClockPayload{
		PickNumber: model.CurrentPick,
		Round:      model.CurrentRound,
	})
}

func (a *App) emit(id uuid.UUID, eventType events.EventType, payload interface{}) {
	if a.sink == nil {
		return
	}
	a.sink.Publish(id, eventType, payload)
}

// persist runs a best-effort repository write. The in-memory session is
// canonical; a failed write degrades durability, not correctness.
func (a *App) persist(ctx context.Context, fn func(Repository) error) {
	if a.repo == nil {
		return
	}
	if err := fn(a.repo); err != nil {
		log.Error().Err(err).Msg("session persistence failed")
	}
}

func validateCreateRequest(req CreateSessionRequest) error {
	if req.TeamCount <= 0 {
		return fmt.Errorf("%w: team count %d", draftcalc.ErrInvalidConfig, req.TeamCount)
	}
	if req.TotalRounds <= 0 {
		return fmt.Errorf("%w: total rounds %d", draftcalc.ErrInvalidConfig, req.TotalRounds)
	}
	if req.UserSlot < 1 || req.UserSlot > req.TeamCount {
		return fmt.Errorf("%w: user slot %d with %d teams", draftcalc.ErrInvalidConfig, req.UserSlot, req.TeamCount)
	}
	switch req.SyncMode {
	case models.SyncModeLive, models.SyncModeManual:
	default:
		return fmt.Errorf("%w: sync mode %q", draftcalc.ErrInvalidConfig, req.SyncMode)
	}

	if len(req.Teams) > 0 {
		if len(req.Teams) != req.TeamCount {
			return fmt.Errorf("%w: %d teams for team count %d", draftcalc.ErrInvalidConfig, len(req.Teams), req.TeamCount)
		}
		slots := make(map[int]bool, len(req.Teams))
		for _, team := range req.Teams {
			if team.Slot < 1 || team.Slot > req.TeamCount || slots[team.Slot] {
				return fmt.Errorf("%w: team slot %d", draftcalc.ErrInvalidConfig, team.Slot)
			}
			slots[team.Slot] = true
		}
	}
	return nil
}

func cloneSession(model models.DraftSession) models.DraftSession {
	out := model
	out.Teams = append([]models.Team(nil), model.Teams...)
	if model.StartedAt != nil {
		t := *model.StartedAt
		out.StartedAt = &t
	}
	if model.CompletedAt != nil {
		t := *model.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
