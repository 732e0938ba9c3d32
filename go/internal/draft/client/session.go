package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Session is one live transport to the coordinator.
type Session interface {
	ReadMessage() ([]byte, error)
	// WriteMessage may be called from several goroutines.
	WriteMessage(data []byte) error
	Close(code int, reason string) error
}

// Dialer opens sessions for a room.
type Dialer interface {
	Dial(ctx context.Context, leagueID, userID string) (Session, error)
}

// WebSocketDialer dials the gateway's /ws/draft endpoint.
type WebSocketDialer struct {
	// BaseURL is the gateway address, e.g. ws://localhost:8081. http(s) schemes are converted.
	BaseURL      string
	Dialer       *websocket.Dialer
	Header       http.Header
	WriteTimeout time.Duration
}

// NewWebSocketDialer returns a dialer with gorilla's default settings.
func NewWebSocketDialer(baseURL string) *WebSocketDialer {
	return &WebSocketDialer{
		BaseURL:      baseURL,
		Dialer:       websocket.DefaultDialer,
		WriteTimeout: 10 * time.Second,
	}
}

// URL builds the upgrade URL for a room.
func (d *WebSocketDialer) URL(leagueID, userID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(d.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += "/ws/draft"
	u.RawQuery = url.Values{"league_id": {leagueID}, "user_id": {userID}}.Encode()
	return u.String(), nil
}

func (d *WebSocketDialer) Dial(ctx context.Context, leagueID, userID string) (Session, error) {
	target, err := d.URL(leagueID, userID)
	if err != nil {
		return nil, err
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, target, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", target, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &wsSession{conn: conn, writeTimeout: d.WriteTimeout}, nil
}

// wsSession serializes writes; gorilla allows one concurrent writer.
type wsSession struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (s *wsSession) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsSession) WriteMessage(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame unless code is CloseAbnormalClosure, which never goes on the wire.
func (s *wsSession) Close(code int, reason string) error {
	if code != websocket.CloseAbnormalClosure {
		s.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		s.writeMu.Unlock()
	}
	return s.conn.Close()
}
