package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/go/internal/draft/coordinator"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/room"
	"github.com/mcdev12/draftroom/go/internal/models"
)

type testGateway struct {
	svc    *Service
	server *httptest.Server
}

func newTestGateway(t *testing.T, mutate ...func(*Config)) *testGateway {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ConnectionConfig.CommandTimeout = 2 * time.Second
	for _, m := range mutate {
		m(&cfg)
	}

	svc, err := NewService(cfg, coordinator.WithTickInterval(0), coordinator.WithClock(clockwork.NewFakeClock()))
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
	return &testGateway{svc: svc, server: srv}
}

func (g *testGateway) createRoom(t *testing.T, leagueID string, teams int) {
	t.Helper()
	_, err := g.svc.Registry.CreateRoom(coordinator.RoomConfig{Settings: room.Settings{
		LeagueID:           leagueID,
		DraftFormat:        models.DraftFormatSnake,
		TeamCount:          teams,
		TotalRounds:        3,
		TimePerPickSeconds: 60,
	}})
	require.NoError(t, err)
}

func (g *testGateway) wsURL(leagueID, userID string) string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/draft?league_id=" + leagueID + "&user_id=" + userID
}

func (g *testGateway) dial(t *testing.T, leagueID, userID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(g.wsURL(leagueID, userID), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ events.Type, payload interface{}) {
	t.Helper()
	data, err := events.Encode(typ, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// collect reads until every wanted type has been seen at least once and returns the first of each.
func collect(t *testing.T, conn *websocket.Conn, want ...events.Type) map[events.Type]events.Envelope {
	t.Helper()
	got := make(map[events.Type]events.Envelope)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		missing := false
		for _, w := range want {
			if _, ok := got[w]; !ok {
				missing = true
			}
		}
		if !missing {
			return got
		}
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %v", want)
		env, err := events.Decode(raw)
		require.NoError(t, err)
		if _, seen := got[env.Type]; !seen {
			got[env.Type] = env
		}
	}
}

func decode[T any](t *testing.T, env events.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, env.DecodeData(&v))
	return v
}

func join(t *testing.T, conn *websocket.Conn, leagueID string, teamID int) {
	t.Helper()
	send(t, conn, events.TypeJoin, events.JoinCommand{RequestID: "join", LeagueID: leagueID, TeamID: teamID})
	got := collect(t, conn, events.TypeCommandAck, events.TypeDraftStatus)
	assert.Equal(t, "join", decode[events.CommandAckPayload](t, got[events.TypeCommandAck]).RequestID)
}

func TestJoinAcksAndBroadcastsStatus(t *testing.T) {
	g := newTestGateway(t)
	g.createRoom(t, "l1", 4)

	watcher := g.dial(t, "l1", "watcher")
	join(t, watcher, "l1", 0)

	conn := g.dial(t, "l1", "alice")
	send(t, conn, events.TypeJoin, events.JoinCommand{RequestID: "r1", LeagueID: "l1", TeamID: 2})
	got := collect(t, conn, events.TypeCommandAck, events.TypeUserJoined, events.TypeDraftStatus)

	status := decode[events.DraftStatusPayload](t, got[events.TypeDraftStatus])
	assert.Equal(t, "l1", status.LeagueID)
	assert.Equal(t, "WAITING", status.Status)

	seen := collect(t, watcher, events.TypeUserJoined)
	presence := decode[events.PresencePayload](t, seen[events.TypeUserJoined])
	assert.Equal(t, "alice", presence.UserID)
	assert.Equal(t, 2, presence.TeamID)
}

func TestPickFlowOverWebSocket(t *testing.T) {
	g := newTestGateway(t)
	g.createRoom(t, "l1", 2)

	a := g.dial(t, "l1", "alice")
	join(t, a, "l1", 1)
	b := g.dial(t, "l1", "bob")
	join(t, b, "l1", 2)

	require.NoError(t, g.svc.Registry.StartDraft(context.Background(), "l1"))

	send(t, a, events.TypeMakePick, events.MakePickCommand{RequestID: "p1", LeagueID: "l1", TeamID: 1, PlayerID: "101"})
	got := collect(t, a, events.TypeCommandAck, events.TypePickMade)
	assert.Equal(t, "p1", decode[events.CommandAckPayload](t, got[events.TypeCommandAck]).RequestID)

	seenByB := collect(t, b, events.TypePickMade)
	pick := decode[events.PickMadePayload](t, seenByB[events.TypePickMade])
	assert.Equal(t, "101", pick.PlayerID)
	assert.Equal(t, 1, pick.PickNumber)
	assert.Equal(t, 2, pick.CurrentPicker)

	send(t, b, events.TypeMakePick, events.MakePickCommand{RequestID: "p2", LeagueID: "l1", TeamID: 2, PlayerID: "101"})
	rej := decode[events.CommandRejectedPayload](t, collect(t, b, events.TypeCommandRejected)[events.TypeCommandRejected])
	assert.Equal(t, "p2", rej.RequestID)
	assert.Equal(t, events.ReasonAlreadyPicked, rej.Code)

	// bob's connection drafts for team 2 only
	send(t, b, events.TypeMakePick, events.MakePickCommand{RequestID: "p3", LeagueID: "l1", TeamID: 1, PlayerID: "102"})
	rej = decode[events.CommandRejectedPayload](t, collect(t, b, events.TypeCommandRejected)[events.TypeCommandRejected])
	assert.Equal(t, "p3", rej.RequestID)
	assert.Equal(t, events.ReasonNotYourTurn, rej.Code)

	s, err := g.svc.Registry.Snapshot(context.Background(), "l1")
	require.NoError(t, err)
	assert.Len(t, s.Picks, 1)
}

func TestPickRequiresJoin(t *testing.T) {
	g := newTestGateway(t)
	g.createRoom(t, "l1", 2)
	require.NoError(t, g.svc.Registry.StartDraft(context.Background(), "l1"))

	conn := g.dial(t, "l1", "alice")
	send(t, conn, events.TypeMakePick, events.MakePickCommand{RequestID: "p", LeagueID: "l1", TeamID: 1, PlayerID: "101"})
	rej := decode[events.CommandRejectedPayload](t, collect(t, conn, events.TypeCommandRejected)[events.TypeCommandRejected])
	assert.Equal(t, events.ReasonInvalidCommand, rej.Code)
}

func TestToggleTimerOverWebSocket(t *testing.T) {
	g := newTestGateway(t)
	g.createRoom(t, "l1", 2)
	conn := g.dial(t, "l1", "alice")
	join(t, conn, "l1", 1)

	send(t, conn, events.TypeToggleTimer, events.ToggleTimerCommand{RequestID: "t1", LeagueID: "l1"})
	rej := decode[events.CommandRejectedPayload](t, collect(t, conn, events.TypeCommandRejected)[events.TypeCommandRejected])
	assert.Equal(t, events.ReasonDraftNotActive, rej.Code)

	require.NoError(t, g.svc.Registry.StartDraft(context.Background(), "l1"))
	send(t, conn, events.TypeToggleTimer, events.ToggleTimerCommand{RequestID: "t2", LeagueID: "l1"})
	got := collect(t, conn, events.TypeCommandAck, events.TypeTimerUpdate)
	timer := decode[events.TimerUpdatePayload](t, got[events.TypeTimerUpdate])
	assert.True(t, timer.IsPaused)
	assert.Equal(t, 60, timer.TimeRemaining)
}

func TestPingAndMalformedMessages(t *testing.T) {
	g := newTestGateway(t)
	g.createRoom(t, "l1", 2)
	conn := g.dial(t, "l1", "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))
	send(t, conn, events.TypePing, nil)

	collect(t, conn, events.TypePong)
}

func TestChatIsRateLimited(t *testing.T) {
	g := newTestGateway(t, func(c *Config) {
		c.ConnectionConfig.ChatRate = 0
		c.ConnectionConfig.ChatBurst = 2
	})
	g.createRoom(t, "l1", 2)
	conn := g.dial(t, "l1", "alice")

	for _, id := range []string{"c1", "c2", "c3"} {
		send(t, conn, events.TypeChatMessage, events.ChatMessagePayload{RequestID: id, LeagueID: "l1", Message: "hello " + id})
	}

	acks, rejected := 0, 0
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for acks+rejected < 3 {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		env, err := events.Decode(raw)
		require.NoError(t, err)
		switch env.Type {
		case events.TypeCommandAck:
			acks++
		case events.TypeCommandRejected:
			rej := decode[events.CommandRejectedPayload](t, env)
			assert.Equal(t, "c3", rej.RequestID)
			assert.Equal(t, events.ReasonRateLimited, rej.Code)
			rejected++
		}
	}
	assert.Equal(t, 2, acks)

	s, err := g.svc.Registry.Snapshot(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, s.ChatMessages, 2)
	assert.Equal(t, "alice", s.ChatMessages[0].UserID)
}

func TestDisconnectMarksUserOffline(t *testing.T) {
	g := newTestGateway(t)
	g.createRoom(t, "l1", 2)
	ctx := context.Background()

	first := g.dial(t, "l1", "alice")
	join(t, first, "l1", 1)
	second := g.dial(t, "l1", "alice")
	join(t, second, "l1", 1)

	online := func() bool {
		s, err := g.svc.Registry.Snapshot(ctx, "l1")
		require.NoError(t, err)
		return s.Participants["alice"].IsOnline
	}

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return g.svc.GetStats().TotalConnections == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.True(t, online(), "another joined connection is still open")

	require.NoError(t, second.Close())
	require.Eventually(t, func() bool { return !online() }, 3*time.Second, 10*time.Millisecond)
}

func TestUpgradeValidation(t *testing.T) {
	g := newTestGateway(t)
	g.createRoom(t, "l1", 2)

	_, resp, err := websocket.DefaultDialer.Dial(g.wsURL("missing", "alice"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	res, err := http.Get(g.server.URL + "/ws/draft?league_id=l1")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestStateRoutes(t *testing.T) {
	g := newTestGateway(t)
	g.createRoom(t, "l1", 2)
	g.createRoom(t, "l2", 4)
	require.NoError(t, g.svc.Registry.StartDraft(context.Background(), "l1"))

	res, err := http.Get(g.server.URL + "/api/rooms/l1/state")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var status events.DraftStatusPayload
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	assert.Equal(t, "ACTIVE", status.Status)
	assert.Equal(t, 1, status.CurrentPicker)

	missing, err := http.Get(g.server.URL + "/api/rooms/nope/state")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	list, err := http.Get(g.server.URL + "/api/rooms")
	require.NoError(t, err)
	defer list.Body.Close()
	var rooms []RoomSummary
	require.NoError(t, json.NewDecoder(list.Body).Decode(&rooms))
	require.Len(t, rooms, 2)
	assert.Equal(t, "l1", rooms[0].LeagueID)
	assert.Equal(t, 4, rooms[1].TeamCount)
}

func TestStatsRoute(t *testing.T) {
	g := newTestGateway(t)
	g.createRoom(t, "l1", 2)
	conn := g.dial(t, "l1", "alice")
	join(t, conn, "l1", 1)

	res, err := http.Get(g.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer res.Body.Close()
	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(res.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.RoomConnections["l1"])
}
