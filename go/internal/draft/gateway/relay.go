package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

// RelayConfig configures mirroring of room events to JetStream.
type RelayConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
	BufferSize      int
	PublishTimeout  time.Duration
	// SkipTypes are not mirrored. TIMER_UPDATE fires every second per room and has no value downstream.
	SkipTypes []events.Type
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		URL:             nats.DefaultURL,
		StreamName:      "DRAFT_ROOMS",
		SubjectPrefix:   "draft.rooms",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		BufferSize:      1024,
		PublishTimeout:  5 * time.Second,
		SkipTypes:       []events.Type{events.TypeTimerUpdate},
	}
}

// RelayMessage is one room event ready for the bus.
type RelayMessage struct {
	ID       string
	LeagueID string
	Type     events.Type
	Subject  string
	Data     []byte
}

// Publisher sends relay messages to a bus.
type Publisher interface {
	Publish(ctx context.Context, msg RelayMessage) error
}

// SubjectFor builds <prefix>.<league>.<type>. Characters NATS treats as tokens are replaced in the league id.
func SubjectFor(prefix, leagueID string, t events.Type) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, leagueID)
	return fmt.Sprintf("%s.%s.%s", prefix, safe, t)
}

func connectNATS(url string, maxReconnects int, reconnectWait time.Duration) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// JetStreamPublisher publishes relay messages to a JetStream stream it owns.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config RelayConfig
}

func NewJetStreamPublisher(cfg RelayConfig) (*JetStreamPublisher, error) {
	nc, err := connectNATS(cfg.URL, cfg.MaxReconnects, cfg.ReconnectWait)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}

	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Committed draft room events",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		MaxMsgs:     p.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}

	stream, err := p.js.Stream(ctx, p.config.StreamName)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, msg RelayMessage) error {
	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: msg.Subject,
		Data:    msg.Data,
		Header: nats.Header{
			"Event-Type": []string{string(msg.Type)},
			"League-ID":  []string{msg.LeagueID},
			"Event-ID":   []string{msg.ID},
		},
	},
		jetstream.WithMsgID(msg.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", msg.Subject).
		Str("event_id", msg.ID).
		Uint64("sequence", ack.Sequence).
		Str("stream", ack.Stream).
		Msg("published to JetStream")
	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}

// EventRelay mirrors room events to a Publisher. It implements coordinator.Broadcaster:
// Broadcast only enqueues, and Run does the publishing off the room loop.
type EventRelay struct {
	pub    Publisher
	config RelayConfig
	skip   map[events.Type]bool
	queue  chan RelayMessage
}

func NewEventRelay(pub Publisher, cfg RelayConfig) *EventRelay {
	skip := make(map[events.Type]bool, len(cfg.SkipTypes))
	for _, t := range cfg.SkipTypes {
		skip[t] = true
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	return &EventRelay{
		pub:    pub,
		config: cfg,
		skip:   skip,
		queue:  make(chan RelayMessage, size),
	}
}

func (r *EventRelay) Broadcast(leagueID string, env events.Envelope) {
	if r.skip[env.Type] {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(env.Type)).Msg("failed to marshal relay event")
		return
	}
	msg := RelayMessage{
		ID:       uuid.NewString(),
		LeagueID: leagueID,
		Type:     env.Type,
		Subject:  SubjectFor(r.config.SubjectPrefix, leagueID, env.Type),
		Data:     data,
	}
	select {
	case r.queue <- msg:
	default:
		log.Warn().
			Str("league_id", leagueID).
			Str("event_type", string(env.Type)).
			Msg("relay queue full, dropping event")
	}
}

// Run publishes queued events until ctx is done. Failed publishes are logged and dropped.
func (r *EventRelay) Run(ctx context.Context) error {
	log.Info().Str("subject_prefix", r.config.SubjectPrefix).Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("pending", len(r.queue)).Msg("event relay shutting down")
			return nil
		case msg := <-r.queue:
			pubCtx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
			err := r.pub.Publish(pubCtx, msg)
			cancel()
			if err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject).
					Str("league_id", msg.LeagueID).
					Msg("failed to relay event")
			}
		}
	}
}
