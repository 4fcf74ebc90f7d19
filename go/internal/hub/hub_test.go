package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSnapshots struct {
	snapshot models.SessionSnapshot
}

func (s *staticSnapshots) Snapshot(id uuid.UUID) (*models.SessionSnapshot, error) {
	snap := s.snapshot
	snap.Session.ID = id
	return &snap, nil
}

func newTestHub() *Hub {
	h := New(clockwork.NewFakeClock())
	h.SetSnapshotProvider(&staticSnapshots{
		snapshot: models.SessionSnapshot{
			Session: models.DraftSession{
				TeamCount:   4,
				TotalRounds: 2,
				CurrentPick: 1,
				Status:      models.SessionStatusInProgress,
			},
		},
	})
	return h
}

func collect(sub *Subscription, n int) []events.Event {
	out := make([]events.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, <-sub.Events())
	}
	return out
}

func TestSubscribeReturnsSnapshotThenEvents(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()

	snap, sub, err := h.Subscribe(sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, snap.Session.ID)
	assert.Equal(t, 1, h.SubscriberCount(sessionID))

	h.Publish(sessionID, events.EventTypePickMade, events.PickMadePayload{PickNumber: 1, TeamSlot: 1})

	got := collect(sub, 1)
	assert.Equal(t, events.EventTypePickMade, got[0].Type)
	assert.Equal(t, sessionID.String(), got[0].SessionID)
}

func TestSequenceNumbersAreMonotonicPerSession(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()
	otherID := uuid.New()

	_, sub, err := h.Subscribe(sessionID)
	require.NoError(t, err)

	// Events on another session must not perturb this session's sequence.
	h.Publish(otherID, events.EventTypePickMade, events.PickMadePayload{PickNumber: 1})

	for i := 1; i <= 5; i++ {
		h.Publish(sessionID, events.EventTypePickMade, events.PickMadePayload{PickNumber: i})
	}

	got := collect(sub, 5)
	for i, event := range got {
		assert.Equal(t, uint64(i+1), event.Seq)
	}
}

func TestFanOutReachesAllSubscribers(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()

	_, subA, err := h.Subscribe(sessionID)
	require.NoError(t, err)
	_, subB, err := h.Subscribe(sessionID)
	require.NoError(t, err)

	h.Publish(sessionID, events.EventTypeStatusChange, events.StatusChangePayload{NewStatus: models.SessionStatusInProgress})

	assert.Equal(t, events.EventTypeStatusChange, collect(subA, 1)[0].Type)
	assert.Equal(t, events.EventTypeStatusChange, collect(subB, 1)[0].Type)
}

func TestSlowSubscriberIsDisconnectedNotBlocking(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()

	_, slow, err := h.Subscribe(sessionID)
	require.NoError(t, err)
	_, healthy, err := h.Subscribe(sessionID)
	require.NoError(t, err)

	// Overflow the slow subscriber's queue without draining it. The healthy
	// subscriber drains as it goes and must receive everything.
	for i := 0; i <= DefaultSubscriberBuffer; i++ {
		h.Publish(sessionID, events.EventTypePickMade, events.PickMadePayload{PickNumber: i + 1})
		<-healthy.Events()
	}

	assert.Equal(t, 1, h.SubscriberCount(sessionID))

	// The slow subscriber's channel is closed after its buffered backlog.
	drained := 0
	for range slow.Events() {
		drained++
	}
	assert.Equal(t, DefaultSubscriberBuffer, drained)
}

func TestUnsubscribeClosesStream(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()

	_, sub, err := h.Subscribe(sessionID)
	require.NoError(t, err)

	h.Unsubscribe(sessionID, sub.ID)
	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, h.SubscriberCount(sessionID))

	// Safe to call twice.
	h.Unsubscribe(sessionID, sub.ID)
}

func TestSequenceSurvivesResubscribe(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()

	_, sub, err := h.Subscribe(sessionID)
	require.NoError(t, err)
	h.Publish(sessionID, events.EventTypePickMade, events.PickMadePayload{PickNumber: 1})
	h.Unsubscribe(sessionID, sub.ID)

	_, fresh, err := h.Subscribe(sessionID)
	require.NoError(t, err)
	h.Publish(sessionID, events.EventTypePickMade, events.PickMadePayload{PickNumber: 2})

	got := collect(fresh, 1)
	assert.Equal(t, uint64(2), got[0].Seq)
}

func TestTapSeesAllSessions(t *testing.T) {
	h := newTestHub()
	tap := h.Tap()

	a, b := uuid.New(), uuid.New()
	h.Publish(a, events.EventTypePickMade, events.PickMadePayload{PickNumber: 1})
	h.Publish(b, events.EventTypeSyncError, events.SyncErrorPayload{Reason: "down"})

	first := <-tap.Events()
	second := <-tap.Events()
	assert.Equal(t, a.String(), first.SessionID)
	assert.Equal(t, b.String(), second.SessionID)
}

func TestReleaseSession(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()

	_, sub, err := h.Subscribe(sessionID)
	require.NoError(t, err)

	h.ReleaseSession(sessionID)
	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, h.SubscriberCount(sessionID))
}

func TestCompletedStatusReleasesSubscribers(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()

	_, subA, err := h.Subscribe(sessionID)
	require.NoError(t, err)
	_, subB, err := h.Subscribe(sessionID)
	require.NoError(t, err)

	h.Publish(sessionID, events.EventTypePickMade, events.PickMadePayload{PickNumber: 8})
	h.Publish(sessionID, events.EventTypeStatusChange, events.StatusChangePayload{NewStatus: models.SessionStatusCompleted})

	// Both subscribers drain the final events, then their streams close and
	// the hub holds no state for the session.
	for _, sub := range []*Subscription{subA, subB} {
		got := collect(sub, 2)
		assert.Equal(t, events.EventTypeStatusChange, got[1].Type)
		_, open := <-sub.Events()
		assert.False(t, open)
	}
	assert.Equal(t, 0, h.SubscriberCount(sessionID))
	assert.Equal(t, uint64(0), h.CurrentSeq(sessionID))
}

func TestCurrentSeqTracksPublishedEvents(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()

	assert.Equal(t, uint64(0), h.CurrentSeq(sessionID))

	for i := 1; i <= 3; i++ {
		h.Publish(sessionID, events.EventTypePickMade, events.PickMadePayload{PickNumber: i})
	}
	assert.Equal(t, uint64(3), h.CurrentSeq(sessionID))
	assert.Equal(t, uint64(0), h.CurrentSeq(uuid.New()))
}

func TestEventPayloadRoundTrip(t *testing.T) {
	h := newTestHub()
	sessionID := uuid.New()
	_, sub, err := h.Subscribe(sessionID)
	require.NoError(t, err)

	h.Publish(sessionID, events.EventTypePickMade, events.PickMadePayload{
		PickNumber: 7,
		Round:      2,
		TeamSlot:   2,
		Player:     models.Player{ID: "p7", Name: "Player Seven", Position: "TE"},
		Source:     models.PickSourceLive,
	})

	event := collect(sub, 1)[0]
	parsed, err := events.ParseEventPayload(&event)
	require.NoError(t, err)
	payload, ok := parsed.(events.PickMadePayload)
	require.True(t, ok)
	assert.Equal(t, 7, payload.PickNumber)
	assert.Equal(t, "p7", payload.Player.ID)
}
