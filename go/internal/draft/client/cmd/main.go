package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/config"
	"github.com/mcdev12/draftroom/go/internal/draft/client"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/room"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := config.NewClientConfigFromEnv()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.Level())

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid client configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clientConfig := client.DefaultConfig()
	clientConfig.AckTimeout = cfg.AckTimeout
	clientConfig.HeartbeatInterval = cfg.HeartbeatGap
	clientConfig.PongTimeout = 2 * cfg.HeartbeatGap

	notifier := client.NotifierFunc(func(n client.Notice) {
		switch notice := n.(type) {
		case client.TurnEndingNotice:
			fmt.Printf("!! %d seconds left on your pick\n", notice.TimeRemaining)
		case client.TradeProposalNotice:
			fmt.Printf("!! trade proposal from %s: %s\n", notice.FromUserID, notice.Message)
		case client.PickMadeNotice:
			fmt.Printf("-- pick %d: team %d took %s\n", notice.PickNumber, notice.TeamID, notice.PlayerID)
		}
	})

	manager := client.NewManager(client.NewWebSocketDialer(cfg.GatewayURL), clientConfig, client.WithNotifier(notifier))
	defer manager.Disconnect()

	if status, err := client.FetchState(ctx, nil, cfg.GatewayURL, cfg.LeagueID); err != nil {
		log.Warn().Err(err).Str("league_id", cfg.LeagueID).Msg("could not fetch baseline state")
	} else {
		manager.Projector().Seed(status)
	}

	manager.OnStatusChange(func(status client.ConnectionStatus, err error) {
		fmt.Printf("** connection %s", status)
		if err != nil {
			fmt.Printf(" (%v)", err)
		}
		fmt.Println()
	})
	manager.On(events.TypeChatMessage, func(env events.Envelope) {
		var msg events.ChatMessagePayload
		if err := env.DecodeData(&msg); err == nil && !msg.IsTradeProposal {
			fmt.Printf("[%s] %s\n", msg.UserID, msg.Message)
		}
	})
	manager.On(events.TypeDraftStatus, func(events.Envelope) { printState(manager) })

	if err := manager.Connect(ctx, cfg.LeagueID, cfg.UserID, cfg.TeamID); err != nil {
		log.Error().Err(err).Msg("initial connect failed, retrying in the background")
	}

	go manager.WatchLiveness(ctx, client.PeriodicProbe{Interval: cfg.ProbeEvery})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Println("commands: pick <player>, chat <text>, trade <text>, pause, state, retry, quit")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := runCommand(ctx, manager, line); quit {
				return
			}
		}
	}
}

func runCommand(ctx context.Context, manager *client.Manager, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	var err error
	switch strings.ToLower(cmd) {
	case "":
		return false
	case "pick":
		err = manager.SendPick(ctx, arg)
	case "chat":
		err = manager.SendChatMessage(ctx, arg, false)
	case "trade":
		err = manager.SendChatMessage(ctx, arg, true)
	case "pause":
		err = manager.ToggleTimer(ctx)
	case "state":
		printState(manager)
	case "retry":
		err = manager.Retry(ctx)
	case "quit", "exit":
		return true
	default:
		fmt.Printf("unknown command %q\n", cmd)
	}

	switch {
	case err == nil:
	case client.IsConnectionError(err):
		fmt.Printf("connection problem: %v\n", err)
	default:
		fmt.Printf("rejected: %v\n", err)
	}
	return false
}

func printState(manager *client.Manager) {
	view := manager.View()
	if !view.Ready {
		fmt.Println("no room state yet")
		return
	}
	r := view.Room
	fmt.Printf("%s  %s  round %d pick %d  team %d on the clock  %ds left",
		r.LeagueID, r.Status, r.CurrentRound, r.CurrentPick, r.CurrentPicker, r.TimeRemainingSeconds)
	if view.IsMyTurn {
		fmt.Print("  << your turn")
	}
	fmt.Println()
	for _, p := range room.SortedParticipants(r) {
		online := "offline"
		if p.IsOnline {
			online = "online"
		}
		fmt.Printf("  team %-2d %-12s %s\n", p.TeamID, p.UserID, online)
	}
	fmt.Printf("  %d picks made, %d skipped\n", len(r.Picks), len(r.SkippedPicks))
}
