// Package gateway is the server transport for draft rooms: WebSocket sessions, REST snapshots,
// the admin RPC, and the JetStream relay of committed room events.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/coordinator"
)

// Service wires the coordinator registry to its transports
type Service struct {
	Registry *coordinator.Registry

	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	admin             *AdminService
	relay             *EventRelay
	publisher         *JetStreamPublisher
}

// Config holds configuration for the draft gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	RelayConfig      RelayConfig
	// EnableRelay mirrors room events to JetStream at RelayConfig.URL.
	EnableRelay bool
}

// DefaultConfig returns default configuration for the draft gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		RelayConfig:      DefaultRelayConfig(),
	}
}

// NewService creates the connection manager, the optional relay, and a registry that broadcasts to both.
func NewService(config Config, opts ...coordinator.Option) (*Service, error) {
	cm := NewConnectionManager(config.ConnectionConfig)
	out := coordinator.FanOut{cm}

	s := &Service{connectionManager: cm}
	if config.EnableRelay {
		pub, err := NewJetStreamPublisher(config.RelayConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event relay: %w", err)
		}
		s.publisher = pub
		s.relay = NewEventRelay(pub, config.RelayConfig)
		out = append(out, s.relay)
	}

	s.Registry = coordinator.NewRegistry(out, opts...)
	cm.BindRooms(s.Registry)

	s.wsHandler = NewWebSocketHandler(cm)
	s.stateHandler = NewStateHandler(s.Registry)
	s.admin = NewAdminService(s.Registry)
	return s, nil
}

// Start runs the broadcast loop and relay until ctx is done, then stops every room
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("relay", s.relay != nil).Msg("starting draft gateway service")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.connectionManager.Start(ctx)
	}()

	if s.relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.relay.Run(ctx); err != nil {
				log.Error().Err(err).Msg("event relay failed")
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()

	log.Info().Msg("draft gateway service shutting down")
	return s.Stop()
}

// Stop closes rooms and the relay connection
func (s *Service) Stop() error {
	s.Registry.Close()
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close relay publisher")
		}
	}
	log.Info().Msg("draft gateway service stopped")
	return nil
}

// RegisterRoutes registers WebSocket, REST and admin routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	mux.Handle(NewAdminHandler(s.admin))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	log.Info().Msg("draft gateway routes registered")
}

// Handler returns every route wrapped in CORS
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
