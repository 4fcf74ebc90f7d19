package reconcile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/ledger"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapterWithSession(t *testing.T, teamCount, totalRounds, userSlot int) (*Adapter, *session.App, uuid.UUID) {
	t.Helper()
	app := session.NewApp(nil, nil, clockwork.NewFakeClock())
	created, err := app.CreateSession(context.Background(), session.CreateSessionRequest{
		TeamCount:   teamCount,
		TotalRounds: totalRounds,
		UserSlot:    userSlot,
		SyncMode:    models.SyncModeLive,
	})
	require.NoError(t, err)
	_, err = app.StartDraft(context.Background(), created.ID)
	require.NoError(t, err)
	return NewAdapter(app), app, created.ID
}

func livePick(number int, playerID string) models.PickProposal {
	return models.PickProposal{
		Number: number,
		Player: models.Player{ID: playerID, Name: "Player " + playerID, Position: "QB"},
		Source: models.PickSourceLive,
	}
}

func manualPick(number int, playerID string) models.PickProposal {
	p := livePick(number, playerID)
	p.Source = models.PickSourceManual
	return p
}

func TestProposeAppliesCurrentPick(t *testing.T) {
	adapter, app, id := newAdapterWithSession(t, 4, 2, 3)

	require.NoError(t, adapter.Propose(context.Background(), id, livePick(1, "p1")))
	current, err := app.CurrentPick(id)
	require.NoError(t, err)
	assert.Equal(t, 2, current)
}

// Spec scenario: proposing pick 5 while currentPick == 3 returns OutOfSequence,
// the adapter buffers it, and it applies automatically once picks 3 and 4
// resolve, without the caller resubmitting.
func TestOutOfOrderLiveProposalBuffersAndDrains(t *testing.T) {
	adapter, app, id := newAdapterWithSession(t, 4, 2, 3)

	require.NoError(t, adapter.Propose(context.Background(), id, livePick(1, "p1")))
	require.NoError(t, adapter.Propose(context.Background(), id, livePick(2, "p2")))

	err := adapter.Propose(context.Background(), id, livePick(5, "p5"))
	assert.ErrorIs(t, err, ledger.ErrOutOfSequence)
	assert.Equal(t, 1, adapter.PendingCount(id))

	require.NoError(t, adapter.Propose(context.Background(), id, livePick(3, "p3")))
	require.NoError(t, adapter.Propose(context.Background(), id, livePick(4, "p4")))

	// Pick 5 drained automatically.
	current, err := app.CurrentPick(id)
	require.NoError(t, err)
	assert.Equal(t, 6, current)
	assert.Equal(t, 0, adapter.PendingCount(id))

	snap, err := app.Snapshot(id)
	require.NoError(t, err)
	require.Len(t, snap.Picks, 5)
	assert.Equal(t, "p5", snap.Picks[4].Player.ID)
	assert.Equal(t, models.PickSourceLive, snap.Picks[4].Source)
}

func TestLateLiveProposalIsStale(t *testing.T) {
	adapter, _, id := newAdapterWithSession(t, 4, 2, 3)

	require.NoError(t, adapter.Propose(context.Background(), id, livePick(1, "p1")))
	err := adapter.Propose(context.Background(), id, livePick(1, "p1-late"))
	assert.ErrorIs(t, err, session.ErrStaleProposal)
}

func TestManualProposalAheadIsNotBuffered(t *testing.T) {
	adapter, _, id := newAdapterWithSession(t, 4, 2, 3)

	err := adapter.Propose(context.Background(), id, manualPick(3, "p3"))
	assert.ErrorIs(t, err, ledger.ErrOutOfSequence)
	assert.Equal(t, 0, adapter.PendingCount(id))
}

// First-writer-wins: once a pick resolves, a proposal for the same number from
// the other source errors instead of overwriting.
func TestFirstWriterWinsAcrossSources(t *testing.T) {
	adapter, app, id := newAdapterWithSession(t, 4, 2, 3)

	require.NoError(t, adapter.Propose(context.Background(), id, manualPick(1, "manual-choice")))

	err := adapter.Propose(context.Background(), id, livePick(1, "feed-choice"))
	assert.ErrorIs(t, err, session.ErrStaleProposal)

	snap, err := app.Snapshot(id)
	require.NoError(t, err)
	require.Len(t, snap.Picks, 1)
	assert.Equal(t, "manual-choice", snap.Picks[0].Player.ID)
}

// A buffered proposal whose player gets drafted manually in the meantime is
// dropped during the drain instead of stalling it.
func TestDrainDropsDuplicatePlayerProposals(t *testing.T) {
	adapter, app, id := newAdapterWithSession(t, 4, 2, 3)

	err := adapter.Propose(context.Background(), id, livePick(2, "shared-player"))
	assert.ErrorIs(t, err, ledger.ErrOutOfSequence)

	require.NoError(t, adapter.Propose(context.Background(), id, manualPick(1, "shared-player")))

	// The buffered pick 2 was reachable but undraftable; it must be dropped.
	current, err := app.CurrentPick(id)
	require.NoError(t, err)
	assert.Equal(t, 2, current)
	assert.Equal(t, 0, adapter.PendingCount(id))
}

func TestPendingOverflow(t *testing.T) {
	adapter, _, id := newAdapterWithSession(t, 20, 20, 1)

	for i := 0; i < DefaultMaxPending; i++ {
		err := adapter.Propose(context.Background(), id, livePick(i+2, uuid.NewString()))
		assert.ErrorIs(t, err, ledger.ErrOutOfSequence)
	}
	err := adapter.Propose(context.Background(), id, livePick(DefaultMaxPending+2, uuid.NewString()))
	assert.ErrorIs(t, err, ErrPendingOverflow)
}

func TestDuplicateBufferedNumberKeepsFirst(t *testing.T) {
	adapter, app, id := newAdapterWithSession(t, 4, 2, 3)

	err := adapter.Propose(context.Background(), id, livePick(2, "first"))
	assert.ErrorIs(t, err, ledger.ErrOutOfSequence)
	err = adapter.Propose(context.Background(), id, livePick(2, "second"))
	assert.ErrorIs(t, err, ledger.ErrOutOfSequence)
	assert.Equal(t, 1, adapter.PendingCount(id))

	require.NoError(t, adapter.Propose(context.Background(), id, livePick(1, "p1")))

	snap, err := app.Snapshot(id)
	require.NoError(t, err)
	require.Len(t, snap.Picks, 2)
	assert.Equal(t, "first", snap.Picks[1].Player.ID)
}

// Spec scenario: reportSyncError, manual pick for the current pick succeeds and
// advances state, reportSyncRecovered does not replay resolved picks.
func TestSyncErrorManualFlow(t *testing.T) {
	adapter, app, id := newAdapterWithSession(t, 4, 2, 3)

	require.NoError(t, adapter.ReportSyncError(context.Background(), id, "poll timeout"))

	snap, err := app.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusSyncError, snap.Session.Status)

	require.NoError(t, adapter.Propose(context.Background(), id, manualPick(1, "p1")))

	require.NoError(t, adapter.ReportSyncRecovered(context.Background(), id))
	snap, err = app.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, snap.Session.Status)
	assert.Len(t, snap.Picks, 1)
	assert.Equal(t, 2, snap.Session.CurrentPick)
}

// Proposals the feed buffered while degraded drain on recovery.
func TestRecoveryDrainsBufferedPicks(t *testing.T) {
	adapter, app, id := newAdapterWithSession(t, 4, 2, 3)

	require.NoError(t, adapter.Propose(context.Background(), id, livePick(1, "p1")))
	require.NoError(t, adapter.ReportSyncError(context.Background(), id, "feed down"))

	err := adapter.Propose(context.Background(), id, livePick(2, "p2"))
	require.NoError(t, err)

	// Feed surfaced pick 3 early while degraded.
	err = adapter.Propose(context.Background(), id, livePick(4, "p4"))
	assert.ErrorIs(t, err, ledger.ErrOutOfSequence)
	require.NoError(t, adapter.Propose(context.Background(), id, livePick(3, "p3")))

	require.NoError(t, adapter.ReportSyncRecovered(context.Background(), id))
	current, err := app.CurrentPick(id)
	require.NoError(t, err)
	assert.Equal(t, 5, current)
}

// Finishing the draft releases the pending buffer, including entries that can
// never apply, so a completed session holds no adapter state.
func TestCompletedDraftReleasesPendingBuffer(t *testing.T) {
	adapter, app, id := newAdapterWithSession(t, 4, 2, 3)

	// A feed glitch announces a pick past the end of the draft; it buffers.
	err := adapter.Propose(context.Background(), id, livePick(9, "phantom"))
	assert.ErrorIs(t, err, ledger.ErrOutOfSequence)
	assert.Equal(t, 1, adapter.PendingCount(id))

	for pick := 1; pick <= 8; pick++ {
		require.NoError(t, adapter.Propose(context.Background(), id, livePick(pick, uuid.NewString())))
	}

	status, err := app.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, status)
	assert.Equal(t, 0, adapter.PendingCount(id))
}

func TestForgetReleasesBuffer(t *testing.T) {
	adapter, _, id := newAdapterWithSession(t, 4, 2, 3)

	err := adapter.Propose(context.Background(), id, livePick(3, "p3"))
	assert.ErrorIs(t, err, ledger.ErrOutOfSequence)
	assert.Equal(t, 1, adapter.PendingCount(id))

	adapter.Forget(id)
	assert.Equal(t, 0, adapter.PendingCount(id))
}
