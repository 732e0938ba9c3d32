package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

var errSessionClosed = errors.New("session closed")

// fakeSession stands in for the coordinator end of a connection.
type fakeSession struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	written   []events.Envelope
	closeCode int
	respond   func(s *fakeSession, env events.Envelope)
}

func newFakeSession(respond func(*fakeSession, events.Envelope)) *fakeSession {
	return &fakeSession{
		in:      make(chan []byte, 64),
		closed:  make(chan struct{}),
		respond: respond,
	}
}

func (s *fakeSession) ReadMessage() ([]byte, error) {
	select {
	case data := <-s.in:
		return data, nil
	case <-s.closed:
		return nil, errSessionClosed
	}
}

func (s *fakeSession) WriteMessage(data []byte) error {
	select {
	case <-s.closed:
		return errSessionClosed
	default:
	}
	env, err := events.Decode(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.written = append(s.written, env)
	respond := s.respond
	s.mu.Unlock()
	if respond != nil {
		respond(s, env)
	}
	return nil
}

func (s *fakeSession) Close(code int, _ string) error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closeCode = code
		s.mu.Unlock()
		close(s.closed)
	})
	return nil
}

// drop simulates the network going away.
func (s *fakeSession) drop() {
	s.once.Do(func() { close(s.closed) })
}

func (s *fakeSession) push(t *testing.T, typ events.Type, payload interface{}) {
	t.Helper()
	data, err := events.Encode(typ, payload)
	require.NoError(t, err)
	s.in <- data
}

func (s *fakeSession) pushRaw(data []byte) {
	s.in <- data
}

func (s *fakeSession) sent(typ events.Type) []events.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Envelope
	for _, env := range s.written {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (s *fakeSession) code() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCode
}

func requestID(env events.Envelope) string {
	var cmd struct {
		RequestID string `json:"requestId"`
	}
	_ = env.DecodeData(&cmd)
	return cmd.RequestID
}

func encode(typ events.Type, payload interface{}) []byte {
	data, err := events.Encode(typ, payload)
	if err != nil {
		panic(err)
	}
	return data
}

func activeStatus(leagueID string) events.DraftStatusPayload {
	return events.DraftStatusPayload{
		LeagueID:           leagueID,
		Status:             "ACTIVE",
		DraftFormat:        "SNAKE",
		TeamCount:          2,
		TotalRounds:        2,
		TimePerPickSeconds: 60,
		CurrentRound:       1,
		CurrentPick:        1,
		CurrentPicker:      1,
		TimeRemaining:      60,
		Participants: []events.ParticipantPayload{
			{UserID: "alice", TeamID: 1, IsOnline: true},
			{UserID: "bob", TeamID: 2, IsOnline: true},
		},
	}
}

// autoRespond answers JOIN with a snapshot and an ack, acks other commands, and answers PING.
func autoRespond(s *fakeSession, env events.Envelope) {
	switch env.Type {
	case events.TypeJoin:
		var cmd events.JoinCommand
		_ = env.DecodeData(&cmd)
		s.pushRaw(encode(events.TypeDraftStatus, activeStatus(cmd.LeagueID)))
		s.pushRaw(encode(events.TypeCommandAck, events.CommandAckPayload{RequestID: cmd.RequestID}))
	case events.TypePing:
		s.pushRaw(encode(events.TypePong, nil))
	default:
		s.pushRaw(encode(events.TypeCommandAck, events.CommandAckPayload{RequestID: requestID(env)}))
	}
}

type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	sessions []*fakeSession
	gate     chan struct{}
	fail     func(n int) error
	respond  func(*fakeSession, events.Envelope)
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{respond: autoRespond}
}

func (d *fakeDialer) Dial(ctx context.Context, _, _ string) (Session, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	gate, fail, respond := d.gate, d.fail, d.respond
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		if err := fail(n); err != nil {
			return nil, err
		}
	}

	s := newFakeSession(respond)
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[i]
}

func (d *fakeDialer) setFail(fail func(n int) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

func waitForStatus(t *testing.T, m *Manager, want ConnectionStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		status, _ := m.Status()
		return status == want
	}, 2*time.Second, 5*time.Millisecond, "waiting for %s", want)
}
