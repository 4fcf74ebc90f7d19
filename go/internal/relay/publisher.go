// Package relay mirrors session events onto NATS so components outside this
// process (archival, analytics) can follow a draft without holding a
// WebSocket.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/events"
	"github.com/mcdev12/draftroom/go/internal/hub"
)

// PublisherConfig holds configuration for the NATS event relay
type PublisherConfig struct {
	URL           string
	SubjectPrefix string // e.g., "draft.events"
	MaxReconnects int
	ReconnectWait time.Duration
	FlushTimeout  time.Duration
}

// DefaultPublisherConfig returns default relay configuration
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "draft.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		FlushTimeout:  5 * time.Second,
	}
}

// Publisher drains a hub tap and publishes each event to
// <prefix>.<sessionID>.<eventType>.
type Publisher struct {
	nc     *nats.Conn
	tap    *hub.Subscription
	config PublisherConfig
}

// NewPublisher connects to NATS and registers a tap on the hub.
func NewPublisher(h *hub.Hub, config PublisherConfig) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("relay NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("relay NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Publisher{
		nc:     nc,
		tap:    h.Tap(),
		config: config,
	}, nil
}

// Start drains the tap until ctx is done or the hub closes the tap.
func (p *Publisher) Start(ctx context.Context) error {
	log.Info().Str("subject_prefix", p.config.SubjectPrefix).Msg("starting event relay")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event relay shutting down")
			return nil
		case event, ok := <-p.tap.Events():
			if !ok {
				log.Info().Msg("event relay tap closed")
				return nil
			}
			if err := p.publish(event); err != nil {
				// The hub does not replay; log and move on.
				log.Error().
					Err(err).
					Str("session_id", event.SessionID).
					Str("event_type", string(event.Type)).
					Msg("failed to relay event")
			}
		}
	}
}

// publish sends one event wrapped in the standard envelope.
func (p *Publisher) publish(event events.Event) error {
	subject := fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, event.SessionID, event.Type)

	envelope := map[string]interface{}{
		"eventId":   event.ID,
		"eventType": string(event.Type),
		"sessionId": event.SessionID,
		"seq":       event.Seq,
		"timestamp": event.Timestamp,
		"payload":   json.RawMessage(event.Data),
	}

	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.nc.Publish(subject, messageBytes); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Uint64("seq", event.Seq).
		Int("size", len(messageBytes)).
		Msg("relayed event")

	return nil
}

// Stop flushes pending publishes and closes the connection.
func (p *Publisher) Stop() error {
	log.Info().Msg("stopping event relay")

	if p.nc != nil {
		if err := p.nc.FlushTimeout(p.config.FlushTimeout); err != nil {
			log.Warn().Err(err).Msg("relay flush timed out")
		}
		p.nc.Close()
	}

	return nil
}
