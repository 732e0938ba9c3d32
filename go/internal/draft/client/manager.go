// Package client is the client side of a draft room: one session per room with
// heartbeat and reconnect, command round trips, and a local projection of room state.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// Config holds client session settings
type Config struct {
	// HeartbeatInterval between PINGs. Zero disables the heartbeat.
	HeartbeatInterval time.Duration
	// PongTimeout is how long an open session may go without a PONG before it is
	// dropped and the reconnect policy takes over. Zero disables the check.
	PongTimeout       time.Duration
	AckTimeout        time.Duration
	DialTimeout       time.Duration
	// InitialBackoff doubles on every attempt: 1s, 2s, 4s, 8s, 16s.
	InitialBackoff       time.Duration
	MaxReconnectAttempts int
	TurnEndingThreshold  int
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    30 * time.Second,
		PongTimeout:          60 * time.Second,
		AckTimeout:           5 * time.Second,
		DialTimeout:          10 * time.Second,
		InitialBackoff:       time.Second,
		MaxReconnectAttempts: 5,
		TurnEndingThreshold:  DefaultTurnEndingThreshold,
	}
}

type Option func(*Manager)

func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

type target struct {
	leagueID string
	userID   string
	teamID   int
}

// Manager owns one session to a draft room. Create one per room being viewed.
type Manager struct {
	config   Config
	dialer   Dialer
	clock    clockwork.Clock
	notifier Notifier

	projector *Projector

	mu          sync.Mutex
	status      ConnectionStatus
	lastErr     error
	target      *target
	generation  uint64
	session     Session
	connCancel  context.CancelFunc
	retryCancel context.CancelFunc
	attempts    int
	lastPong    time.Time
	pending     map[string]chan error

	listenerMu      sync.RWMutex
	listeners       map[events.Type]map[int]func(events.Envelope)
	statusListeners map[int]func(ConnectionStatus, error)
	nextListenerID  int
}

// NewManager creates a disconnected manager.
func NewManager(dialer Dialer, config Config, opts ...Option) *Manager {
	m := &Manager{
		config:          config,
		dialer:          dialer,
		clock:           clockwork.NewRealClock(),
		status:          StatusDisconnected,
		pending:         make(map[string]chan error),
		listeners:       make(map[events.Type]map[int]func(events.Envelope)),
		statusListeners: make(map[int]func(ConnectionStatus, error)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.projector = NewProjector(m.notifier, config.TurnEndingThreshold)
	return m
}

// Connect opens the session and joins the room as teamID (0 to observe). It is a no-op
// while CONNECTING or CONNECTED. A failed dial moves to ERROR and schedules a reconnect.
func (m *Manager) Connect(ctx context.Context, leagueID, userID string, teamID int) error {
	m.mu.Lock()
	if m.status == StatusConnecting || m.status == StatusConnected {
		m.mu.Unlock()
		return nil
	}
	t := &target{leagueID: leagueID, userID: userID, teamID: teamID}
	gen := m.resetLocked(t)
	m.setStatusLocked(StatusConnecting, nil)
	m.mu.Unlock()
	m.emitStatus()

	m.projector.SetIdentity(userID, teamID)

	if err := m.establish(ctx, gen, *t); err != nil {
		if errors.Is(err, errSuperseded) {
			return fmt.Errorf("%w: disconnected while connecting", ErrNotConnected)
		}
		m.connectFailed(gen, err)
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return m.joinOrDrop(ctx, gen, *t)
}

// Retry reconnects to the last room immediately, with a fresh attempt budget.
func (m *Manager) Retry(ctx context.Context) error {
	m.mu.Lock()
	t := m.target
	m.mu.Unlock()
	if t == nil {
		return ErrNoTarget
	}
	return m.Connect(ctx, t.leagueID, t.userID, t.teamID)
}

// CheckLiveness is called when the host suspects the session may be gone, for example
// when the application returns to the foreground. A closed or silent session is redialed
// at once; a live one gets a PING.
func (m *Manager) CheckLiveness(ctx context.Context) error {
	m.mu.Lock()
	t := m.target
	status := m.status
	sess := m.session
	gen := m.generation
	stale := m.pongOverdueLocked()
	m.mu.Unlock()

	switch {
	case t == nil || status == StatusConnecting:
		return nil
	case status == StatusConnected && sess != nil && !stale:
		err := m.ping(sess)
		if err == nil {
			return nil
		}
		log.Info().
			Err(err).
			Str("league_id", t.leagueID).
			Msg("liveness ping failed, reconnecting")
		m.handleClosed(gen, sess, err)
		return m.Retry(ctx)
	case status == StatusConnected && sess != nil:
		log.Info().
			Str("league_id", t.leagueID).
			Time("last_pong", m.LastPong()).
			Msg("liveness check found session silent, reconnecting")
		m.handleClosed(gen, sess, ErrHeartbeatTimeout)
		return m.Retry(ctx)
	default:
		log.Info().
			Str("league_id", t.leagueID).
			Str("status", string(status)).
			Msg("liveness check found session closed, reconnecting")
		return m.Retry(ctx)
	}
}

// Disconnect closes the session with a normal closure, cancels any pending reconnect,
// and clears the local room state. It never triggers a reconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.resetLocked(nil)
	sess := m.session
	m.session = nil
	m.setStatusLocked(StatusDisconnected, nil)
	m.mu.Unlock()

	if sess != nil {
		if err := sess.Close(websocket.CloseNormalClosure, "client disconnect"); err != nil {
			log.Debug().Err(err).Msg("error closing session")
		}
	}
	m.projector.Reset()
	m.emitStatus()
	log.Info().Msg("disconnected from draft room")
}

// resetLocked invalidates everything tied to the previous generation.
func (m *Manager) resetLocked(t *target) uint64 {
	m.generation++
	if m.retryCancel != nil {
		m.retryCancel()
		m.retryCancel = nil
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.failPendingLocked()
	m.attempts = 0
	m.target = t
	return m.generation
}

var errSuperseded = errors.New("connection attempt superseded")

// establish dials and installs the session. Only dial failures are returned.
func (m *Manager) establish(ctx context.Context, gen uint64, t target) error {
	dialCtx, cancel := context.WithTimeout(ctx, m.config.DialTimeout)
	defer cancel()

	sess, err := m.dialer.Dial(dialCtx, t.leagueID, t.userID)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		sess.Close(websocket.CloseNormalClosure, "superseded")
		return errSuperseded
	}
	connCtx, connCancel := context.WithCancel(context.Background())
	m.session = sess
	m.connCancel = connCancel
	m.lastPong = m.clock.Now()
	m.setStatusLocked(StatusConnected, nil)

	var heartbeat clockwork.Ticker
	if m.config.HeartbeatInterval > 0 {
		heartbeat = m.clock.NewTicker(m.config.HeartbeatInterval)
	}
	m.mu.Unlock()

	log.Info().
		Str("league_id", t.leagueID).
		Str("user_id", t.userID).
		Msg("connected to draft room")
	m.emitStatus()

	go m.readLoop(gen, sess)
	if heartbeat != nil {
		go m.heartbeat(connCtx, gen, sess, heartbeat)
	}
	return nil
}

func (m *Manager) join(ctx context.Context, t target) error {
	err := m.command(ctx, events.TypeJoin, func(requestID string) interface{} {
		return events.JoinCommand{RequestID: requestID, LeagueID: t.leagueID, UserID: t.userID, TeamID: t.teamID}
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("league_id", t.leagueID).
			Int("team_id", t.teamID).
			Msg("join failed")
		return fmt.Errorf("join room: %w", err)
	}
	return nil
}

// joinOrDrop joins over a fresh session. The attempt budget resets only once the JOIN is
// acknowledged; an unjoined session is dropped so the reconnect policy runs again.
func (m *Manager) joinOrDrop(ctx context.Context, gen uint64, t target) error {
	if err := m.join(ctx, t); err != nil {
		m.mu.Lock()
		sess := m.session
		m.mu.Unlock()
		if sess != nil {
			m.handleClosed(gen, sess, err)
		}
		return err
	}
	m.mu.Lock()
	if gen == m.generation {
		m.attempts = 0
	}
	m.mu.Unlock()
	return nil
}

// connectFailed records a dial failure and schedules the next attempt.
func (m *Manager) connectFailed(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	log.Warn().Err(err).Int("attempt", m.attempts).Msg("failed to connect to draft room")
	m.setStatusLocked(StatusError, err)
	m.scheduleReconnectLocked(gen)
	m.mu.Unlock()
	m.emitStatus()
}

// handleClosed runs when the read loop of the current session stops.
func (m *Manager) handleClosed(gen uint64, sess Session, err error) {
	m.mu.Lock()
	if gen != m.generation || m.session != sess {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.session = nil
	m.failPendingLocked()
	log.Warn().Err(err).Msg("draft room connection lost")
	m.setStatusLocked(StatusDisconnected, err)
	m.scheduleReconnectLocked(gen)
	m.mu.Unlock()

	sess.Close(websocket.CloseAbnormalClosure, "")
	m.emitStatus()
}

// BackoffDelay is the wait before reconnect attempt number attempt (zero based).
func BackoffDelay(initial time.Duration, attempt int) time.Duration {
	return initial << uint(attempt)
}

func (m *Manager) scheduleReconnectLocked(gen uint64) {
	if m.attempts >= m.config.MaxReconnectAttempts {
		log.Error().
			Int("attempt", m.attempts).
			Msg("giving up reconnecting to draft room")
		m.setStatusLocked(StatusError, ErrConnectionFailed)
		return
	}

	delay := BackoffDelay(m.config.InitialBackoff, m.attempts)
	m.attempts++
	log.Info().
		Int("attempt", m.attempts).
		Dur("delay", delay).
		Msg("scheduling reconnect")

	ctx, cancel := context.WithCancel(context.Background())
	m.retryCancel = cancel
	timer := m.clock.NewTimer(delay)
	go func() {
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
		}
		m.redial(gen)
	}()
}

func (m *Manager) redial(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.target == nil {
		m.mu.Unlock()
		return
	}
	t := *m.target
	if m.retryCancel != nil {
		m.retryCancel()
		m.retryCancel = nil
	}
	m.setStatusLocked(StatusConnecting, nil)
	m.mu.Unlock()
	m.emitStatus()

	if err := m.establish(context.Background(), gen, t); err != nil {
		if !errors.Is(err, errSuperseded) {
			m.connectFailed(gen, err)
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.config.AckTimeout+time.Second)
	defer cancel()
	if err := m.joinOrDrop(ctx, gen, t); err != nil {
		log.Warn().
			Err(err).
			Str("league_id", t.leagueID).
			Msg("rejoin after reconnect failed")
	}
}

func (m *Manager) readLoop(gen uint64, sess Session) {
	for {
		data, err := sess.ReadMessage()
		if err != nil {
			m.handleClosed(gen, sess, err)
			return
		}
		if !m.current(gen) {
			return
		}
		m.handleMessage(data)
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

// heartbeat PINGs on every tick and drops the session once PONGs stop arriving or a
// PING cannot be written. The read loop may never notice a half-open connection.
func (m *Manager) heartbeat(ctx context.Context, gen uint64, sess Session, ticker clockwork.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.mu.Lock()
			stale := m.pongOverdueLocked()
			m.mu.Unlock()
			if stale {
				log.Warn().Time("last_pong", m.LastPong()).Msg("heartbeat timed out")
				m.handleClosed(gen, sess, ErrHeartbeatTimeout)
				return
			}
			if err := m.ping(sess); err != nil {
				log.Warn().Err(err).Msg("heartbeat failed")
				m.handleClosed(gen, sess, err)
				return
			}
		}
	}
}

func (m *Manager) pongOverdueLocked() bool {
	return m.config.PongTimeout > 0 && m.clock.Since(m.lastPong) > m.config.PongTimeout
}

func (m *Manager) ping(sess Session) error {
	data, err := events.Encode(events.TypePing, nil)
	if err != nil {
		return err
	}
	if err := sess.WriteMessage(data); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

func (m *Manager) handleMessage(data []byte) {
	env, err := events.Decode(data)
	if err != nil {
		log.Warn().Err(err).Msg("dropping malformed message from coordinator")
		return
	}

	switch env.Type {
	case events.TypeCommandAck:
		var ack events.CommandAckPayload
		if err := env.DecodeData(&ack); err != nil {
			log.Warn().Err(err).Msg("dropping malformed ack")
			return
		}
		m.resolve(ack.RequestID, nil)
	case events.TypeCommandRejected:
		var rej events.CommandRejectedPayload
		if err := env.DecodeData(&rej); err != nil {
			log.Warn().Err(err).Msg("dropping malformed rejection")
			return
		}
		m.resolve(rej.RequestID, &CommandRejectedError{RequestID: rej.RequestID, Code: rej.Code, Reason: rej.Reason})
	case events.TypePong:
		m.mu.Lock()
		m.lastPong = m.clock.Now()
		m.mu.Unlock()
	default:
		if err := m.projector.Apply(env); err != nil {
			log.Warn().
				Err(err).
				Str("event_type", string(env.Type)).
				Msg("dropping event that could not be applied")
			return
		}
	}

	m.dispatch(env)
}

func (m *Manager) resolve(requestID string, result error) {
	m.mu.Lock()
	ch, ok := m.pending[requestID]
	if ok {
		delete(m.pending, requestID)
	}
	m.mu.Unlock()
	if ok {
		ch <- result
	}
}

func (m *Manager) failPendingLocked() {
	for id, ch := range m.pending {
		select {
		case ch <- ErrNotConnected:
		default:
		}
		delete(m.pending, id)
	}
}

// command sends one request and waits for its ack. There is no automatic retry.
func (m *Manager) command(ctx context.Context, t events.Type, build func(requestID string) interface{}) error {
	requestID := uuid.NewString()
	data, err := events.Encode(t, build(requestID))
	if err != nil {
		return err
	}

	ch := make(chan error, 1)
	m.mu.Lock()
	sess := m.session
	if m.status != StatusConnected || sess == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.pending[requestID] = ch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, requestID)
		m.mu.Unlock()
	}()

	if err := sess.WriteMessage(data); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	timer := m.clock.NewTimer(m.config.AckTimeout)
	defer timer.Stop()

	select {
	case err := <-ch:
		return err
	case <-timer.Chan():
		log.Warn().
			Str("event_type", string(t)).
			Str("request_id", requestID).
			Msg("command timed out")
		return fmt.Errorf("%s %s: %w", t, requestID, ErrAckTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendPick submits a pick for the local team. Obvious failures are caught against the
// cached state first; the coordinator still has the final word.
func (m *Manager) SendPick(ctx context.Context, playerID string) error {
	if err := m.requireConnected(); err != nil {
		return err
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return localReject(events.ReasonInvalidCommand, "player id is required")
	}

	state, ready := m.projector.State()
	teamID := m.projector.TeamID()
	if teamID == 0 {
		return localReject(events.ReasonInvalidCommand, "observers cannot pick")
	}
	if ready {
		switch {
		case state.IsPaused:
			return localReject(events.ReasonPaused, "draft is paused")
		case state.Status != models.RoomStatusActive:
			return localReject(events.ReasonDraftNotActive, "draft is %s", strings.ToLower(string(state.Status)))
		case state.HasPlayer(playerID):
			return localReject(events.ReasonAlreadyPicked, "player %s already drafted", playerID)
		case state.CurrentPicker != teamID:
			return localReject(events.ReasonNotYourTurn, "team %d is on the clock", state.CurrentPicker)
		}
	}

	return m.command(ctx, events.TypeMakePick, func(requestID string) interface{} {
		return events.MakePickCommand{RequestID: requestID, LeagueID: state.LeagueID, TeamID: teamID, PlayerID: playerID}
	})
}

// SendChatMessage posts to the room chat.
func (m *Manager) SendChatMessage(ctx context.Context, text string, isTradeProposal bool) error {
	if err := m.requireConnected(); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return localReject(events.ReasonInvalidCommand, "message is empty")
	}
	state, ready := m.projector.State()
	if ready && state.Status == models.RoomStatusCompleted {
		return localReject(events.ReasonDraftNotActive, "draft is completed")
	}

	return m.command(ctx, events.TypeChatMessage, func(requestID string) interface{} {
		return events.ChatMessagePayload{
			RequestID:       requestID,
			LeagueID:        state.LeagueID,
			Message:         text,
			IsTradeProposal: isTradeProposal,
		}
	})
}

// ToggleTimer pauses or resumes the pick clock.
func (m *Manager) ToggleTimer(ctx context.Context) error {
	if err := m.requireConnected(); err != nil {
		return err
	}
	state, ready := m.projector.State()
	if ready && state.Status != models.RoomStatusActive && state.Status != models.RoomStatusPaused {
		return localReject(events.ReasonDraftNotActive, "draft is %s", strings.ToLower(string(state.Status)))
	}

	return m.command(ctx, events.TypeToggleTimer, func(requestID string) interface{} {
		return events.ToggleTimerCommand{RequestID: requestID, LeagueID: state.LeagueID}
	})
}

func (m *Manager) requireConnected() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusConnected {
		return ErrNotConnected
	}
	return nil
}

// On registers a listener for one event type and returns a function that removes it.
// A panicking listener is logged and does not affect other listeners.
func (m *Manager) On(t events.Type, fn func(events.Envelope)) (unsubscribe func()) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	id := m.nextListenerID
	m.nextListenerID++
	if m.listeners[t] == nil {
		m.listeners[t] = make(map[int]func(events.Envelope))
	}
	m.listeners[t][id] = fn
	return func() {
		m.listenerMu.Lock()
		defer m.listenerMu.Unlock()
		delete(m.listeners[t], id)
	}
}

// OnStatusChange registers a listener for connection status changes.
func (m *Manager) OnStatusChange(fn func(ConnectionStatus, error)) (unsubscribe func()) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	id := m.nextListenerID
	m.nextListenerID++
	m.statusListeners[id] = fn
	return func() {
		m.listenerMu.Lock()
		defer m.listenerMu.Unlock()
		delete(m.statusListeners, id)
	}
}

func (m *Manager) dispatch(env events.Envelope) {
	m.listenerMu.RLock()
	fns := make([]func(events.Envelope), 0, len(m.listeners[env.Type]))
	for _, fn := range m.listeners[env.Type] {
		fns = append(fns, fn)
	}
	m.listenerMu.RUnlock()

	for _, fn := range fns {
		m.callListener(string(env.Type), func() { fn(env) })
	}
}

func (m *Manager) emitStatus() {
	status, err := m.Status()
	m.listenerMu.RLock()
	fns := make([]func(ConnectionStatus, error), 0, len(m.statusListeners))
	for _, fn := range m.statusListeners {
		fns = append(fns, fn)
	}
	m.listenerMu.RUnlock()

	for _, fn := range fns {
		m.callListener("status", func() { fn(status, err) })
	}
}

func (m *Manager) callListener(name string, call func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event_type", name).
				Msg("listener panicked")
		}
	}()
	call()
}

func (m *Manager) setStatusLocked(status ConnectionStatus, err error) {
	m.status = status
	m.lastErr = err
}

// Status returns the connection status and the error that caused it, if any.
func (m *Manager) Status() (ConnectionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.lastErr
}

// LastPong is when the coordinator last answered a PING.
func (m *Manager) LastPong() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPong
}

// Projector exposes the local replica.
func (m *Manager) Projector() *Projector {
	return m.projector
}

// View is what a UI renders. Derived fields are computed when View is called.
type View struct {
	Room             models.Room
	Ready            bool
	IsMyTurn         bool
	IsConnected      bool
	ConnectionStatus ConnectionStatus
	Err              error
}

func (m *Manager) View() View {
	state, ready := m.projector.State()
	status, err := m.Status()
	return View{
		Room:             state,
		Ready:            ready,
		IsMyTurn:         m.projector.IsMyTurn(),
		IsConnected:      status == StatusConnected,
		ConnectionStatus: status,
		Err:              err,
	}
}
