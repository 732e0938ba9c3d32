package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/gateway"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// Tails the room relay stream and logs what a notification service would push to members.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := config.NewConfigFromEnv()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(cfg.Level())

	consumerCfg := gateway.DefaultRelayConsumerConfig()
	consumerCfg.URL = cfg.NATSURL
	if name := os.Getenv("RELAY_CONSUMER_NAME"); name != "" {
		consumerCfg.ConsumerName = name
	}

	consumer, err := gateway.NewRelayConsumer(consumerCfg, dispatch)
	if err != nil {
		log.Fatal().Err(err).Msg("create relay consumer")
	}
	defer consumer.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("url", consumerCfg.URL).
		Str("consumer", consumerCfg.ConsumerName).
		Msg("relay dispatcher running")

	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("relay consumer stopped")
	}
	log.Info().Msg("relay dispatcher shutdown complete")
}

func dispatch(_ context.Context, leagueID string, env events.Envelope) error {
	switch env.Type {
	case events.TypePickMade:
		var p events.PickMadePayload
		if err := env.DecodeData(&p); err != nil {
			return err
		}
		log.Info().
			Str("league_id", leagueID).
			Int("team_id", p.TeamID).
			Str("player_id", p.PlayerID).
			Int("pick", p.PickNumber).
			Bool("auto_pick", p.AutoPick).
			Msg("pick made")
		if p.Status == string(models.RoomStatusCompleted) {
			log.Info().Str("league_id", leagueID).Msg("draft completed")
		}

	case events.TypeChatMessage:
		var c events.ChatMessagePayload
		if err := env.DecodeData(&c); err != nil {
			return err
		}
		if c.IsTradeProposal {
			log.Info().
				Str("league_id", leagueID).
				Str("user_id", c.UserID).
				Str("message", c.Message).
				Msg("trade proposal")
		}

	default:
		log.Debug().Str("league_id", leagueID).Str("event_type", string(env.Type)).Msg("relay event")
	}
	return nil
}
