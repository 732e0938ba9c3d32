package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/draftroom/go/internal/draft/coordinator"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// Rooms is the slice of the coordinator the transport drives.
type Rooms interface {
	Join(ctx context.Context, leagueID, userID string, teamID int) error
	Leave(ctx context.Context, leagueID, userID string) error
	SubmitPick(ctx context.Context, leagueID string, teamID int, playerID string) (models.DraftPick, error)
	TogglePause(ctx context.Context, leagueID string) (bool, error)
	SendChat(ctx context.Context, leagueID, userID, text string, isTradeProposal bool) (models.ChatMessage, error)
	Snapshot(ctx context.Context, leagueID string) (models.Room, error)
}

// ConnectionManager manages WebSocket connections for draft rooms
type ConnectionManager struct {
	// Connection pools organized by league ID
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	rooms    Rooms

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID       string
	UserID   string
	LeagueID string
	Conn     *websocket.Conn
	Manager  *ConnectionManager

	ConnectedAt time.Time

	send    chan []byte
	limiter *rate.Limiter

	mu       sync.Mutex
	closed   bool
	joined   bool
	teamID   int
	lastPing time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	CommandTimeout  time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	BroadcastBuffer int
	ChatRate        float64 // sustained chat messages per second per connection
	ChatBurst       int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is one event queued for a room
type BroadcastMessage struct {
	LeagueID string
	Event    events.Envelope
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		CommandTimeout:  5 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		BroadcastBuffer: 1000,
		ChatRate:        2,
		ChatBurst:       5,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager. Commands are
// rejected with UNAVAILABLE until BindRooms is called.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, config.BroadcastBuffer),
	}
}

// BindRooms sets the coordinator commands are routed to.
func (cm *ConnectionManager) BindRooms(rooms Rooms) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.rooms = rooms
}

func (cm *ConnectionManager) roomsOrNil() Rooms {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.rooms
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Broadcast queues an event for every connection in the league. It never blocks.
// When the queue is full a TIMER_UPDATE is dropped, since the next tick carries the same
// fields. Any other dropped event would leave replicas behind for good, so the league's
// connections are closed instead and clients resync from the DRAFT_STATUS sent on rejoin.
func (cm *ConnectionManager) Broadcast(leagueID string, env events.Envelope) {
	select {
	case cm.broadcastCh <- BroadcastMessage{LeagueID: leagueID, Event: env}:
		return
	default:
	}

	if env.Type == events.TypeTimerUpdate {
		log.Warn().
			Str("league_id", leagueID).
			Msg("broadcast channel full, dropping timer update")
		return
	}
	log.Warn().
		Str("league_id", leagueID).
		Str("event_type", string(env.Type)).
		Msg("broadcast channel full, closing room connections to force a resync")
	cm.closeRoom(leagueID)
}

// closeRoom drops every connection in the league. Leave runs asynchronously, so it is
// safe to call from the room's own goroutine.
func (cm *ConnectionManager) closeRoom(leagueID string) {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.roomConnections[leagueID]))
	for conn := range cm.roomConnections[leagueID] {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID, leagueID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		LeagueID:    leagueID,
		Conn:        conn,
		Manager:     cm,
		ConnectedAt: now,
		send:        make(chan []byte, cm.config.SendBufferSize),
		limiter:     rate.NewLimiter(rate.Limit(cm.config.ChatRate), cm.config.ChatBurst),
		lastPing:    now,
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Str("league_id", leagueID).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConnections[conn.LeagueID] == nil {
		cm.roomConnections[conn.LeagueID] = make(map[*Connection]bool)
	}
	cm.roomConnections[conn.LeagueID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("league_id", conn.LeagueID).
		Int("total_connections", len(cm.roomConnections[conn.LeagueID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection and, when it was the user's last joined
// connection in the room, marks the user offline.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	connections, exists := cm.roomConnections[conn.LeagueID]
	if !exists || !connections[conn] {
		cm.mu.Unlock()
		return
	}
	delete(connections, conn)
	if len(connections) == 0 {
		delete(cm.roomConnections, conn.LeagueID)
	}
	stillJoined := false
	for other := range connections {
		if other.UserID == conn.UserID && other.isJoined() {
			stillJoined = true
			break
		}
	}
	rooms := cm.rooms
	cm.mu.Unlock()

	wasJoined := conn.isJoined()
	conn.closeSend()

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Str("league_id", conn.LeagueID).
		Msg("connection unregistered")

	if wasJoined && !stillJoined && rooms != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cm.config.CommandTimeout)
			defer cancel()
			if err := rooms.Leave(ctx, conn.LeagueID, conn.UserID); err != nil {
				log.Warn().
					Err(err).
					Str("league_id", conn.LeagueID).
					Str("user_id", conn.UserID).
					Msg("failed to mark participant offline")
			}
		}()
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roomConnections[message.LeagueID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	// Marshal the event once
	data, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if !conn.enqueue(data) {
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("league_id", message.LeagueID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.roomConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()
	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats summarizes active connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveRooms:     len(cm.roomConnections),
		RoomConnections: make(map[string]int, len(cm.roomConnections)),
	}
	for leagueID, connections := range cm.roomConnections {
		stats.TotalConnections += len(connections)
		stats.RoomConnections[leagueID] = len(connections)
	}
	return stats
}

func (c *Connection) isJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *Connection) team() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teamID, c.joined
}

func (c *Connection) markJoined(teamID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = true
	c.teamID = teamID
}

// enqueue hands data to the write pump without blocking. It reports false when the buffer is full.
func (c *Connection) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// LastPing reports when the client last answered a ping.
func (c *Connection) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage routes one inbound envelope. Commands are applied in the order they were read.
func (c *Connection) handleClientMessage(message []byte) {
	env, err := events.Decode(message)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Msg("dropping malformed client message")
		return
	}

	if env.Type == events.TypePing {
		c.touch()
		c.reply(events.TypePong, nil)
		return
	}

	rooms := c.Manager.roomsOrNil()
	if rooms == nil {
		c.rejectWith("", &coordinator.RejectionError{Code: events.ReasonUnavailable, Reason: "coordinator is not ready"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.CommandTimeout)
	defer cancel()

	switch env.Type {
	case events.TypeJoin:
		var cmd events.JoinCommand
		if err := env.DecodeData(&cmd); err != nil {
			c.dropInvalid(env, err)
			return
		}
		if err := c.checkLeague(cmd.LeagueID); err != nil {
			c.rejectWith(cmd.RequestID, err)
			return
		}
		if err := rooms.Join(ctx, c.LeagueID, c.UserID, cmd.TeamID); err != nil {
			c.rejectWith(cmd.RequestID, err)
			return
		}
		c.markJoined(cmd.TeamID)
		c.ack(cmd.RequestID)

	case events.TypeMakePick:
		var cmd events.MakePickCommand
		if err := env.DecodeData(&cmd); err != nil {
			c.dropInvalid(env, err)
			return
		}
		if err := c.checkLeague(cmd.LeagueID); err != nil {
			c.rejectWith(cmd.RequestID, err)
			return
		}
		teamID, joined := c.team()
		if !joined || teamID == 0 {
			c.rejectWith(cmd.RequestID, &coordinator.RejectionError{Code: events.ReasonInvalidCommand, Reason: "join the room as a team before picking"})
			return
		}
		if cmd.TeamID != 0 && cmd.TeamID != teamID {
			c.rejectWith(cmd.RequestID, &coordinator.RejectionError{
				Code:   events.ReasonNotYourTurn,
				Reason: fmt.Sprintf("this connection drafts for team %d", teamID),
			})
			return
		}
		if _, err := rooms.SubmitPick(ctx, c.LeagueID, teamID, cmd.PlayerID); err != nil {
			c.rejectWith(cmd.RequestID, err)
			return
		}
		c.ack(cmd.RequestID)

	case events.TypeToggleTimer:
		var cmd events.ToggleTimerCommand
		if len(env.Data) > 0 {
			if err := env.DecodeData(&cmd); err != nil {
				c.dropInvalid(env, err)
				return
			}
		}
		if err := c.checkLeague(cmd.LeagueID); err != nil {
			c.rejectWith(cmd.RequestID, err)
			return
		}
		if _, err := rooms.TogglePause(ctx, c.LeagueID); err != nil {
			c.rejectWith(cmd.RequestID, err)
			return
		}
		c.ack(cmd.RequestID)

	case events.TypeChatMessage:
		var cmd events.ChatMessagePayload
		if err := env.DecodeData(&cmd); err != nil {
			c.dropInvalid(env, err)
			return
		}
		if err := c.checkLeague(cmd.LeagueID); err != nil {
			c.rejectWith(cmd.RequestID, err)
			return
		}
		if !c.limiter.Allow() {
			c.rejectWith(cmd.RequestID, &coordinator.RejectionError{Code: events.ReasonRateLimited, Reason: "too many chat messages"})
			return
		}
		if _, err := rooms.SendChat(ctx, c.LeagueID, c.UserID, cmd.Message, cmd.IsTradeProposal); err != nil {
			c.rejectWith(cmd.RequestID, err)
			return
		}
		c.ack(cmd.RequestID)

	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("event_type", string(env.Type)).
			Msg("dropping unsupported client message")
	}
}

func (c *Connection) checkLeague(leagueID string) error {
	if leagueID != "" && leagueID != c.LeagueID {
		return &coordinator.RejectionError{
			Code:   events.ReasonInvalidCommand,
			Reason: fmt.Sprintf("connection is bound to league %s", c.LeagueID),
		}
	}
	return nil
}

func (c *Connection) dropInvalid(env events.Envelope, err error) {
	log.Warn().
		Err(err).
		Str("connection_id", c.ID).
		Str("event_type", string(env.Type)).
		Msg("dropping malformed command")
}

func (c *Connection) ack(requestID string) {
	c.reply(events.TypeCommandAck, events.CommandAckPayload{RequestID: requestID})
}

// rejectWith answers the sender only. Errors that are not rejections are reported as UNAVAILABLE.
func (c *Connection) rejectWith(requestID string, err error) {
	payload := events.CommandRejectedPayload{RequestID: requestID}
	var rej *coordinator.RejectionError
	switch {
	case errors.As(err, &rej):
		payload.Code, payload.Reason = rej.Code, rej.Reason
	case errors.Is(err, coordinator.ErrRoomClosed):
		payload.Code, payload.Reason = events.ReasonUnknownRoom, err.Error()
	default:
		log.Error().Err(err).Str("connection_id", c.ID).Str("league_id", c.LeagueID).Msg("command failed")
		payload.Code, payload.Reason = events.ReasonUnavailable, err.Error()
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("user_id", c.UserID).
		Str("league_id", c.LeagueID).
		Str("code", string(payload.Code)).
		Msg("command rejected")
	c.reply(events.TypeCommandRejected, payload)
}

func (c *Connection) reply(t events.Type, payload interface{}) {
	data, err := events.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to encode reply")
		return
	}
	if !c.enqueue(data) {
		log.Warn().Str("connection_id", c.ID).Str("event_type", string(t)).Msg("send buffer full, dropping reply")
	}
}
