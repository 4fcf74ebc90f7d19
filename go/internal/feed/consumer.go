// Package feed consumes live pick announcements from JetStream and routes
// them through the reconciliation adapter. Feed outages degrade affected
// sessions to sync-error; reconnects recover them and drain buffered picks.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/ledger"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/mcdev12/draftroom/go/internal/session"
)

// ProposalSink is what the consumer needs from the reconciliation adapter.
type ProposalSink interface {
	Propose(ctx context.Context, sessionID uuid.UUID, proposal models.PickProposal) error
	ReportSyncError(ctx context.Context, sessionID uuid.UUID, reason string) error
	ReportSyncRecovered(ctx context.Context, sessionID uuid.UUID) error
}

// SessionLister enumerates sessions currently tracked in memory so a feed
// outage can degrade all of them.
type SessionLister interface {
	LiveSessionIDs() []uuid.UUID
}

// ConsumerConfig holds configuration for the JetStream pick consumer
type ConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string        // e.g., "feed.picks.>"
	MaxDeliver    int           // Max delivery attempts
	AckWait       time.Duration // How long to wait for ack
	MaxAckPending int           // Max messages pending ack
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig returns default JetStream consumer configuration
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "FEED_PICKS",
		ConsumerName:  "draftroom-feed",
		SubjectFilter: "feed.picks.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// pickEnvelope is the wire format of a live feed announcement. The session ID
// rides on the subject, not in the body.
type pickEnvelope struct {
	PickNumber int           `json:"pickNumber"`
	Player     models.Player `json:"player"`
	RecordedAt time.Time     `json:"recordedAt"`
}

// Consumer consumes live picks from JetStream and proposes them to the
// reconciliation adapter
type Consumer struct {
	sink     ProposalSink
	sessions SessionLister
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   ConsumerConfig
}

// NewConsumer creates a new JetStream pick consumer. The disconnect and
// reconnect handlers drive the sync-error lifecycle for every live session.
func NewConsumer(sink ProposalSink, sessions SessionLister, config ConsumerConfig) (*Consumer, error) {
	c := &Consumer{
		sink:     sink,
		sessions: sessions,
		config:   config,
	}

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("feed NATS disconnected")
			c.degradeAll(err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("feed NATS reconnected")
			c.recoverAll()
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("feed NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	c.nc = nc
	c.js = js

	if err := c.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return c, nil
}

// ensureConsumer creates or gets the durable JetStream consumer
func (c *Consumer) ensureConsumer(ctx context.Context) error {
	stream, err := c.js.Stream(ctx, c.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          c.config.ConsumerName,
		Durable:       c.config.ConsumerName,
		Description:   "Live pick feed consumer",
		FilterSubject: c.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    c.config.MaxDeliver,
		AckWait:       c.config.AckWait,
		MaxAckPending: c.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, c.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", c.config.ConsumerName).
			Str("stream", c.config.StreamName).
			Msg("created JetStream consumer")
	} else {
		log.Info().
			Str("consumer", c.config.ConsumerName).
			Str("stream", c.config.StreamName).
			Msg("using existing JetStream consumer")
	}

	c.consumer = consumer
	return nil
}

// Start begins consuming picks from JetStream. Blocks until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", c.config.ConsumerName).
		Str("stream", c.config.StreamName).
		Msg("starting pick feed consumer")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("pick feed consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := c.processMessage(ctx, msg); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject()).
					Msg("failed to process pick message")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
			} else {
				if ackErr := msg.Ack(); ackErr != nil {
					log.Error().Err(ackErr).Msg("failed to ACK message")
				}
			}
		}
	}
}

// processMessage proposes one feed pick to the reconciliation adapter.
// Out-of-sequence, stale, and duplicate outcomes are terminal for the message:
// the adapter has either buffered the pick or decided it can never apply, so
// redelivery would change nothing.
func (c *Consumer) processMessage(ctx context.Context, msg jetstream.Msg) error {
	sessionID, err := sessionIDFromSubject(msg.Subject())
	if err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject()).Msg("dropping pick with bad subject")
		return nil
	}

	var envelope pickEnvelope
	if err := json.Unmarshal(msg.Data(), &envelope); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject()).Msg("dropping malformed pick envelope")
		return nil
	}

	proposal := models.PickProposal{
		Number: envelope.PickNumber,
		Player: envelope.Player,
		Source: models.PickSourceLive,
	}

	err = c.sink.Propose(ctx, sessionID, proposal)
	switch {
	case err == nil:
		log.Info().
			Str("session_id", sessionID.String()).
			Int("pick_number", proposal.Number).
			Msg("applied feed pick")
		return nil

	case errors.Is(err, ledger.ErrOutOfSequence),
		errors.Is(err, session.ErrStaleProposal),
		errors.Is(err, ledger.ErrDuplicatePlayer),
		errors.Is(err, session.ErrSessionNotFound):
		log.Debug().
			Err(err).
			Str("session_id", sessionID.String()).
			Int("pick_number", proposal.Number).
			Msg("feed pick not applied")
		return nil

	default:
		return fmt.Errorf("propose feed pick: %w", err)
	}
}

// degradeAll marks every live-tracked session as sync-error after a feed
// outage. Manual picks keep flowing while degraded.
func (c *Consumer) degradeAll(cause error) {
	reason := "feed connection lost"
	if cause != nil {
		reason = cause.Error()
	}
	for _, id := range c.sessions.LiveSessionIDs() {
		if err := c.sink.ReportSyncError(context.Background(), id, reason); err != nil {
			log.Error().Err(err).Str("session_id", id.String()).Msg("failed to degrade session")
		}
	}
}

func (c *Consumer) recoverAll() {
	for _, id := range c.sessions.LiveSessionIDs() {
		if err := c.sink.ReportSyncRecovered(context.Background(), id); err != nil {
			log.Error().Err(err).Str("session_id", id.String()).Msg("failed to recover session")
		}
	}
}

// Stop gracefully shuts down the consumer
func (c *Consumer) Stop() error {
	log.Info().Msg("stopping pick feed consumer")

	if c.nc != nil {
		c.nc.Close()
	}

	return nil
}

// GetConsumerInfo returns information about the consumer
func (c *Consumer) GetConsumerInfo(ctx context.Context) (*jetstream.ConsumerInfo, error) {
	return c.consumer.Info(ctx)
}

// sessionIDFromSubject extracts the session ID from "feed.picks.<sessionID>".
func sessionIDFromSubject(subject string) (uuid.UUID, error) {
	parts := strings.Split(subject, ".")
	if len(parts) < 3 {
		return uuid.Nil, fmt.Errorf("subject %q has no session token", subject)
	}
	id, err := uuid.Parse(parts[len(parts)-1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse session id from subject %q: %w", subject, err)
	}
	return id, nil
}
