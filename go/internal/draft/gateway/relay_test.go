package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs []RelayMessage
}

func (p *capturePublisher) Publish(_ context.Context, msg RelayMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturePublisher) published() []RelayMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RelayMessage(nil), p.msgs...)
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "draft.rooms.l1.PICK_MADE", SubjectFor("draft.rooms", "l1", events.TypePickMade))
	assert.Equal(t, "draft.rooms.a_b_c_d.USER_JOINED", SubjectFor("draft.rooms", "a.b*c>d", events.TypeUserJoined))
}

func TestEventRelaySkipsTimerUpdates(t *testing.T) {
	pub := &capturePublisher{}
	relay := NewEventRelay(pub, DefaultRelayConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	relay.Broadcast("l1", events.MustEnvelope(events.TypeTimerUpdate, events.TimerUpdatePayload{LeagueID: "l1", TimeRemaining: 10}))
	relay.Broadcast("l1", events.MustEnvelope(events.TypePickMade, events.PickMadePayload{LeagueID: "l1", PlayerID: "p1", PickNumber: 1}))

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	msg := pub.published()[0]
	assert.Equal(t, events.TypePickMade, msg.Type)
	assert.Equal(t, "l1", msg.LeagueID)
	assert.Equal(t, "draft.rooms.l1.PICK_MADE", msg.Subject)
	assert.NotEmpty(t, msg.ID)

	env, err := events.Decode(msg.Data)
	require.NoError(t, err)
	var pick events.PickMadePayload
	require.NoError(t, env.DecodeData(&pick))
	assert.Equal(t, "p1", pick.PlayerID)
}

func TestEventRelayDropsWhenQueueFull(t *testing.T) {
	cfg := DefaultRelayConfig()
	cfg.BufferSize = 1
	relay := NewEventRelay(&capturePublisher{}, cfg)

	relay.Broadcast("l1", events.MustEnvelope(events.TypeUserJoined, events.PresencePayload{UserID: "a"}))
	relay.Broadcast("l1", events.MustEnvelope(events.TypeUserJoined, events.PresencePayload{UserID: "b"}))
	assert.Len(t, relay.queue, 1)
}

func runJetStreamServer(t *testing.T) string {
	t.Helper()
	s, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(s.Shutdown)
	return s.ClientURL()
}

func TestJetStreamRelayRoundTrip(t *testing.T) {
	url := runJetStreamServer(t)

	relayCfg := DefaultRelayConfig()
	relayCfg.URL = url
	pub, err := NewJetStreamPublisher(relayCfg)
	require.NoError(t, err)
	defer pub.Close()

	// a second publisher reuses the existing stream
	again, err := NewJetStreamPublisher(relayCfg)
	require.NoError(t, err)
	again.Close()

	relay := NewEventRelay(pub, relayCfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	relay.Broadcast("l1", events.MustEnvelope(events.TypeUserJoined, events.PresencePayload{LeagueID: "l1", UserID: "alice", TeamID: 1}))
	relay.Broadcast("l1", events.MustEnvelope(events.TypeTimerUpdate, events.TimerUpdatePayload{LeagueID: "l1"}))
	relay.Broadcast("l1", events.MustEnvelope(events.TypePickMade, events.PickMadePayload{LeagueID: "l1", PlayerID: "p1", PickNumber: 1}))

	type received struct {
		leagueID string
		typ      events.Type
	}
	var (
		mu   sync.Mutex
		seen []received
	)
	consumerCfg := DefaultRelayConsumerConfig()
	consumerCfg.URL = url
	consumerCfg.AckWait = time.Second
	consumer, err := NewRelayConsumer(consumerCfg, func(_ context.Context, leagueID string, env events.Envelope) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, received{leagueID: leagueID, typ: env.Type})
		return nil
	})
	require.NoError(t, err)
	defer consumer.Stop()
	go func() { _ = consumer.Start(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []received{
		{leagueID: "l1", typ: events.TypeUserJoined},
		{leagueID: "l1", typ: events.TypePickMade},
	}, seen)
}

func TestServiceWithRelayPublishesRoomEvents(t *testing.T) {
	url := runJetStreamServer(t)
	g := newTestGateway(t, func(c *Config) {
		c.EnableRelay = true
		c.RelayConfig.URL = url
	})
	g.createRoom(t, "l1", 2)
	require.NoError(t, g.svc.Registry.StartDraft(context.Background(), "l1"))

	got := make(chan events.Type, 4)
	consumerCfg := DefaultRelayConsumerConfig()
	consumerCfg.URL = url
	consumer, err := NewRelayConsumer(consumerCfg, func(_ context.Context, _ string, env events.Envelope) error {
		select {
		case got <- env.Type:
		default:
		}
		return nil
	})
	require.NoError(t, err)
	defer consumer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = consumer.Start(ctx) }()

	select {
	case typ := <-got:
		assert.Equal(t, events.TypeDraftStatus, typ)
	case <-time.After(5 * time.Second):
		t.Fatal("no relayed event")
	}
}
