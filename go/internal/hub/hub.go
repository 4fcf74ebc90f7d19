// Package hub fans session events out to subscribers. Delivery is
// fire-and-forget per subscriber: a slow consumer is disconnected rather than
// allowed to block the rest.
package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultSubscriberBuffer is the per-subscriber event queue depth. Overflow
// disconnects the subscriber; a reconnect fetches a fresh snapshot instead of
// gap-filling.
const DefaultSubscriberBuffer = 64

// SnapshotProvider supplies the session+ledger snapshot handed to
// late-joining subscribers. The session App satisfies this.
type SnapshotProvider interface {
	Snapshot(id uuid.UUID) (*models.SessionSnapshot, error)
}

// Subscription is one subscriber's handle on a session's event stream.
type Subscription struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	ch        chan events.Event
	closeOnce sync.Once
}

// Events returns the subscriber's event channel. The channel closes on
// unsubscribe or overflow disconnect.
func (s *Subscription) Events() <-chan events.Event {
	return s.ch
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Hub maintains per-session subscriber sets and assigns each event a
// per-session monotonically increasing sequence number.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionSubs
	taps     []*Subscription

	snapshots  SnapshotProvider
	clock      clockwork.Clock
	bufferSize int
}

type sessionSubs struct {
	seq  uint64
	subs map[uuid.UUID]*Subscription
}

// New creates a hub. The snapshot provider may be set later via
// SetSnapshotProvider to break the construction cycle with the session App.
func New(clock clockwork.Clock) *Hub {
	return &Hub{
		sessions:   make(map[uuid.UUID]*sessionSubs),
		clock:      clock,
		bufferSize: DefaultSubscriberBuffer,
	}
}

// SetSnapshotProvider wires the snapshot source used on subscribe.
func (h *Hub) SetSnapshotProvider(p SnapshotProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots = p
}

// Subscribe registers a subscriber and returns the current snapshot plus the
// event stream. Events emitted after the snapshot is taken flow on the stream;
// nothing before it is replayed.
func (h *Hub) Subscribe(sessionID uuid.UUID) (*models.SessionSnapshot, *Subscription, error) {
	h.mu.Lock()
	provider := h.snapshots
	if provider == nil {
		h.mu.Unlock()
		return nil, nil, fmt.Errorf("hub has no snapshot provider")
	}

	sub := &Subscription{
		ID:        uuid.New(),
		SessionID: sessionID,
		ch:        make(chan events.Event, h.bufferSize),
	}
	ss, ok := h.sessions[sessionID]
	if !ok {
		ss = &sessionSubs{subs: make(map[uuid.UUID]*Subscription)}
		h.sessions[sessionID] = ss
	}
	ss.subs[sub.ID] = sub
	h.mu.Unlock()

	snapshot, err := provider.Snapshot(sessionID)
	if err != nil {
		h.Unsubscribe(sessionID, sub.ID)
		return nil, nil, err
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Str("subscriber_id", sub.ID.String()).
		Msg("subscriber joined")

	return snapshot, sub, nil
}

// Unsubscribe removes a subscriber and closes its stream. Safe to call twice.
func (h *Hub) Unsubscribe(sessionID, subscriberID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sessionID, subscriberID)
}

// SubscriberCount reports the live subscribers for a session.
func (h *Hub) SubscriberCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ss, ok := h.sessions[sessionID]; ok {
		return len(ss.subs)
	}
	return 0
}

// Tap registers a process-wide observer that receives every event for every
// session on its own bounded queue. Used by the NATS relay.
func (h *Hub) Tap() *Subscription {
	sub := &Subscription{
		ID: uuid.New(),
		ch: make(chan events.Event, h.bufferSize),
	}
	h.mu.Lock()
	h.taps = append(h.taps, sub)
	h.mu.Unlock()
	return sub
}

// Publish builds the event envelope, stamps it with the session's next
// sequence number, and fans it out. Implements session.EventSink; never
// blocks the caller.
func (h *Hub) Publish(sessionID uuid.UUID, eventType events.EventType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event payload")
		return
	}

	h.mu.Lock()
	ss, ok := h.sessions[sessionID]
	if !ok {
		ss = &sessionSubs{subs: make(map[uuid.UUID]*Subscription)}
		h.sessions[sessionID] = ss
	}
	ss.seq++

	event := events.Event{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Seq:       ss.seq,
		Type:      eventType,
		Timestamp: h.clock.Now(),
		Data:      data,
	}

	var dropped []uuid.UUID
	for id, sub := range ss.subs {
		select {
		case sub.ch <- event:
		default:
			// Subscriber is slow or dead; disconnect it. A reconnect gets a
			// fresh snapshot rather than the missed events.
			dropped = append(dropped, id)
		}
	}
	for _, id := range dropped {
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("subscriber_id", id.String()).
			Msg("subscriber queue full, disconnecting")
		h.removeLocked(sessionID, id)
	}

	// A completed draft publishes nothing further. Release the session so
	// subscriber sets do not accumulate; the final event is already queued,
	// so each subscriber drains it and then sees its channel close.
	if sc, ok := payload.(events.StatusChangePayload); ok && sc.NewStatus == models.SessionStatusCompleted {
		for id := range ss.subs {
			h.removeLocked(sessionID, id)
		}
		delete(h.sessions, sessionID)
	}

	taps := h.taps
	h.mu.Unlock()

	for _, tap := range taps {
		select {
		case tap.ch <- event:
		default:
			log.Warn().Str("event_type", string(eventType)).Msg("tap queue full, dropping event")
		}
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Str("event_type", string(eventType)).
		Uint64("seq", event.Seq).
		Msg("event published")
}

// CurrentSeq returns the last sequence number published for a session, or 0
// when none has been. Implements the session App's sink interface; the App
// reads it while holding the session lock so the value is an exact watermark
// for the snapshot it is stamped on.
func (h *Hub) CurrentSeq(sessionID uuid.UUID) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ss, ok := h.sessions[sessionID]; ok {
		return ss.seq
	}
	return 0
}

// ReleaseSession drops the subscriber set for an abandoned session. The
// session's canonical state lives in the session App and is unaffected.
func (h *Hub) ReleaseSession(sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ss, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	for id := range ss.subs {
		h.removeLocked(sessionID, id)
	}
	delete(h.sessions, sessionID)
}

func (h *Hub) removeLocked(sessionID, subscriberID uuid.UUID) {
	ss, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	sub, ok := ss.subs[subscriberID]
	if !ok {
		return
	}
	delete(ss.subs, subscriberID)
	sub.close()

	// Keep the sequence counter even with no subscribers left so a
	// late-joining subscriber still sees monotonic numbering.
	log.Debug().
		Str("session_id", sessionID.String()).
		Str("subscriber_id", subscriberID.String()).
		Msg("subscriber removed")
}
