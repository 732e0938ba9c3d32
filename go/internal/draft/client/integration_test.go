package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/go/internal/draft/coordinator"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/gateway"
	"github.com/mcdev12/draftroom/go/internal/draft/room"
	"github.com/mcdev12/draftroom/go/internal/models"
)

func startGateway(t *testing.T) (*gateway.Service, *httptest.Server) {
	t.Helper()
	svc, err := gateway.NewService(gateway.DefaultConfig(),
		coordinator.WithTickInterval(0),
		coordinator.WithClock(clockwork.NewFakeClock()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	_, err = svc.Registry.CreateRoom(coordinator.RoomConfig{Settings: room.Settings{
		LeagueID:           "l1",
		DraftFormat:        models.DraftFormatSnake,
		TeamCount:          2,
		TotalRounds:        2,
		TimePerPickSeconds: 60,
	}})
	require.NoError(t, err)
	return svc, srv
}

func newLiveManager(t *testing.T, baseURL string, opts ...Option) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 0
	m := NewManager(NewWebSocketDialer(baseURL), cfg, opts...)
	t.Cleanup(m.Disconnect)
	return m
}

func TestDraftAgainstGateway(t *testing.T) {
	svc, srv := startGateway(t)
	ctx := context.Background()

	notices := &recordingNotifier{}
	alice := newLiveManager(t, srv.URL, WithNotifier(notices))
	bob := newLiveManager(t, srv.URL)

	require.NoError(t, alice.Connect(ctx, "l1", "alice", 1))
	require.NoError(t, bob.Connect(ctx, "l1", "bob", 2))

	require.Eventually(t, func() bool { return alice.View().Ready && bob.View().Ready }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, models.RoomStatusWaiting, alice.View().Room.Status)

	code, _ := RejectionCode(alice.SendPick(ctx, "p1"))
	assert.Equal(t, events.ReasonDraftNotActive, code)

	require.NoError(t, svc.Registry.StartDraft(ctx, "l1"))
	require.Eventually(t, func() bool { return alice.View().IsMyTurn }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, alice.SendPick(ctx, "p1"))
	require.Eventually(t, func() bool { return bob.View().IsMyTurn }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, bob.SendPick(ctx, "p2"))
	require.Eventually(t, func() bool {
		s := alice.View().Room
		return len(s.Picks) == 2 && s.CurrentPicker == 2 && s.CurrentRound == 2
	}, 2*time.Second, 5*time.Millisecond, "snake wraps back to team 2")

	code, _ = RejectionCode(alice.SendPick(ctx, "p3"))
	assert.Equal(t, events.ReasonNotYourTurn, code)

	require.NoError(t, bob.SendChatMessage(ctx, "p1 for p2?", true))
	require.Eventually(t, func() bool { return len(alice.View().Room.ChatMessages) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, notices.kinds(), NoticeTradeProposal)
	assert.Contains(t, notices.kinds(), NoticePickMade)

	require.NoError(t, alice.ToggleTimer(ctx))
	require.Eventually(t, func() bool { return bob.View().Room.IsPaused }, 2*time.Second, 5*time.Millisecond)
	code, _ = RejectionCode(bob.SendPick(ctx, "p3"))
	assert.Equal(t, events.ReasonPaused, code)

	server, err := svc.Registry.Snapshot(ctx, "l1")
	require.NoError(t, err)
	replica := alice.View().Room
	require.Len(t, replica.Picks, len(server.Picks))
	for i := range server.Picks {
		assert.Equal(t, server.Picks[i].PlayerID, replica.Picks[i].PlayerID)
		assert.Equal(t, server.Picks[i].OverallPickNumber, replica.Picks[i].OverallPickNumber)
	}
	assert.Equal(t, server.CurrentPicker, replica.CurrentPicker)
	assert.Equal(t, server.TimeRemainingSeconds, replica.TimeRemainingSeconds)

	bob.Disconnect()
	require.Eventually(t, func() bool {
		s, err := svc.Registry.Snapshot(ctx, "l1")
		return err == nil && !s.Participants["bob"].IsOnline
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !alice.View().Room.Participants["bob"].IsOnline }, 2*time.Second, 5*time.Millisecond)
}

func TestFetchState(t *testing.T) {
	_, srv := startGateway(t)

	status, err := FetchState(context.Background(), srv.Client(), srv.URL, "l1")
	require.NoError(t, err)
	assert.Equal(t, "l1", status.LeagueID)
	assert.Equal(t, "WAITING", status.Status)

	p := NewProjector(nil, 0)
	p.Seed(status)
	state, ready := p.State()
	assert.True(t, ready)
	assert.Equal(t, 2, state.TeamCount)

	_, err = FetchState(context.Background(), srv.Client(), srv.URL, "missing")
	assert.Error(t, err)
}

func TestWebSocketDialerURL(t *testing.T) {
	d := NewWebSocketDialer("http://localhost:8081/")
	u, err := d.URL("league 1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8081/ws/draft?league_id=league+1&user_id=alice", u)

	d = NewWebSocketDialer("wss://draft.example.com")
	u, err = d.URL("l1", "bob")
	require.NoError(t, err)
	assert.Equal(t, "wss://draft.example.com/ws/draft?league_id=l1&user_id=bob", u)
}

func TestDialUnknownRoomFails(t *testing.T) {
	_, srv := startGateway(t)
	m := newLiveManager(t, srv.URL)
	err := m.Connect(context.Background(), "missing", "alice", 1)
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
}
