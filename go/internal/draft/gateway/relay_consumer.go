package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

// RelayConsumerConfig holds configuration for reading relayed room events
type RelayConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string        // e.g., "draft.rooms.>"
	MaxDeliver    int           // Max delivery attempts
	AckWait       time.Duration // How long to wait for ack
	MaxAckPending int           // Max messages pending ack
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultRelayConsumerConfig returns default consumer configuration
func DefaultRelayConsumerConfig() RelayConsumerConfig {
	return RelayConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "DRAFT_ROOMS",
		ConsumerName:  "draft-notifier",
		SubjectFilter: "draft.rooms.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// RelayHandler receives one relayed room event. Returning an error redelivers it.
type RelayHandler func(ctx context.Context, leagueID string, env events.Envelope) error

// RelayConsumer reads room events published by EventRelay. Downstream collaborators such as a
// notification dispatcher use it instead of holding a WebSocket per room.
type RelayConsumer struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   RelayConsumerConfig
	handler  RelayHandler
}

// NewRelayConsumer connects and creates or reuses a durable consumer on an existing stream
func NewRelayConsumer(config RelayConsumerConfig, handler RelayHandler) (*RelayConsumer, error) {
	nc, err := connectNATS(config.URL, config.MaxReconnects, config.ReconnectWait)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	rc := &RelayConsumer{
		nc:      nc,
		js:      js,
		config:  config,
		handler: handler,
	}

	if err := rc.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return rc, nil
}

func (rc *RelayConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := rc.js.Stream(ctx, rc.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          rc.config.ConsumerName,
		Durable:       rc.config.ConsumerName,
		Description:   "Draft room event reader",
		FilterSubject: rc.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    rc.config.MaxDeliver,
		AckWait:       rc.config.AckWait,
		MaxAckPending: rc.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", rc.config.ConsumerName).
		Str("stream", rc.config.StreamName).
		Msg("JetStream consumer ready")

	rc.consumer = consumer
	return nil
}

// Start consumes until ctx is done. Messages are handled one at a time in stream order.
func (rc *RelayConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", rc.config.ConsumerName).
		Str("stream", rc.config.StreamName).
		Msg("starting relay consumer")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := rc.consumer.Consume(func(msg jetstream.Msg) {
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
			log.Info().Msg("relay consumer shutting down")
			return nil
		case msg := <-messageCh:
			rc.processMessage(ctx, msg)
		}
	}
}

func (rc *RelayConsumer) processMessage(ctx context.Context, msg jetstream.Msg) {
	env, err := events.Decode(msg.Data())
	if err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject()).Msg("terminating malformed relay message")
		if termErr := msg.Term(); termErr != nil {
			log.Error().Err(termErr).Msg("failed to TERM message")
		}
		return
	}

	leagueID := msg.Headers().Get("League-ID")
	if err := rc.handler(ctx, leagueID, env); err != nil {
		log.Error().
			Err(err).
			Str("subject", msg.Subject()).
			Str("league_id", leagueID).
			Msg("failed to process relay message")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		log.Error().Err(ackErr).Msg("failed to ACK message")
	}
}

// Stop closes the NATS connection
func (rc *RelayConsumer) Stop() error {
	log.Info().Msg("stopping relay consumer")
	if rc.nc != nil {
		rc.nc.Close()
	}
	return nil
}
