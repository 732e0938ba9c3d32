package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/draft/coordinator"
	"github.com/mcdev12/draftroom/go/internal/draft/gateway"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := config.NewConfigFromEnv()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.Level())

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.ConnectionConfig.CommandTimeout = cfg.CommandTimeout
	gatewayConfig.ConnectionConfig.ChatRate = cfg.ChatRate
	gatewayConfig.ConnectionConfig.ChatBurst = cfg.ChatBurst
	gatewayConfig.EnableRelay = cfg.EnableRelay
	gatewayConfig.RelayConfig.URL = cfg.NATSURL

	opts := []coordinator.Option{
		coordinator.WithTickInterval(cfg.TickInterval),
		coordinator.WithAutoPickStrategy(coordinator.RandomStrategyForSeed(cfg.AutoPickSeed)),
	}

	svc, err := gateway.NewService(gatewayConfig, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	if cfg.RoomsFile != "" {
		rooms, err := config.LoadRooms(cfg.RoomsFile)
		if err != nil {
			log.Fatal().Err(err).Str("rooms_file", cfg.RoomsFile).Msg("failed to load rooms")
		}
		for _, rc := range rooms {
			if _, err := svc.Registry.CreateRoom(rc); err != nil {
				log.Fatal().Err(err).Str("league_id", rc.LeagueID).Msg("failed to create room")
			}
		}
		log.Info().Int("rooms", len(rooms)).Msg("seeded rooms")
	}

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     h2c.NewHandler(svc.Handler(), &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := svc.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Bool("relay", cfg.EnableRelay).
			Msg("draft gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	select {
	case <-serviceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("gateway service did not stop in time")
	}

	log.Info().Msg("draft gateway shutdown complete")
}
