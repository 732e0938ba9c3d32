package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/go/internal/draft/coordinator"
	"github.com/mcdev12/draftroom/go/internal/models"
)

func TestNewConfigFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"GATEWAY_PORT", "LOG_LEVEL", "NATS_URL", "RELAY_ENABLED", "ROOMS_FILE", "TICK_INTERVAL", "CHAT_RATE", "CHAT_BURST"} {
		t.Setenv(key, "")
	}

	cfg := NewConfigFromEnv()
	assert.Equal(t, ":8081", cfg.Addr())
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.False(t, cfg.EnableRelay)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 2.0, cfg.ChatRate)
	assert.Equal(t, 5, cfg.ChatBurst)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestNewConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "9000")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("RELAY_ENABLED", "true")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("CHAT_RATE", "0.5")
	t.Setenv("CHAT_BURST", "not-a-number")

	cfg := NewConfigFromEnv()
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.True(t, cfg.EnableRelay)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 0.5, cfg.ChatRate)
	assert.Equal(t, 5, cfg.ChatBurst)
}

func TestLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, Config{LogLevel: "loud"}.Level())
	assert.Equal(t, zerolog.InfoLevel, Config{}.Level())
	assert.Equal(t, zerolog.WarnLevel, Config{LogLevel: "warn"}.Level())
}

const roomsYAML = `
rooms:
  - league_id: league-1
    draft_format: snake
    team_count: 12
    total_rounds: 15
    time_per_pick_seconds: 90
    scheduled_at: 2026-09-01T18:00:00Z
    expiry_policy: auto_pick
    player_pool: [p1, p2, p3]
    participants:
      alice: 1
      bob: 2
  - league_id: league-2
    draft_format: LINEAR
    team_count: 4
    total_rounds: 3
    time_per_pick_seconds: 30
`

func TestParseRooms(t *testing.T) {
	rooms, err := ParseRooms([]byte(roomsYAML))
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	first := rooms[0]
	assert.Equal(t, "league-1", first.LeagueID)
	assert.Equal(t, models.DraftFormatSnake, first.DraftFormat)
	assert.Equal(t, coordinator.ExpiryAutoPick, first.ExpiryPolicy)
	require.NotNil(t, first.ScheduledAt)
	assert.True(t, first.ScheduledAt.Equal(time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"p1", "p2", "p3"}, first.PlayerPool)
	assert.Equal(t, 2, first.Participants["bob"])

	second := rooms[1]
	assert.Equal(t, models.DraftFormatLinear, second.DraftFormat)
	assert.Nil(t, second.ScheduledAt)
	assert.Equal(t, coordinator.ExpiryPolicy(""), second.ExpiryPolicy)
}

func TestParseRoomsRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad format": `
rooms:
  - league_id: l1
    draft_format: auction
    team_count: 2
    total_rounds: 1
    time_per_pick_seconds: 30`,
		"duplicate": `
rooms:
  - {league_id: l1, draft_format: SNAKE, team_count: 2, total_rounds: 1, time_per_pick_seconds: 30}
  - {league_id: l1, draft_format: SNAKE, team_count: 2, total_rounds: 1, time_per_pick_seconds: 30}`,
		"participant team": `
rooms:
  - league_id: l1
    draft_format: SNAKE
    team_count: 2
    total_rounds: 1
    time_per_pick_seconds: 30
    participants: {alice: 3}`,
		"not yaml": "rooms: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRooms([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRooms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(roomsYAML), 0o600))

	rooms, err := LoadRooms(path)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	_, err = LoadRooms(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClientConfig(t *testing.T) {
	t.Setenv("GATEWAY_URL", "")
	t.Setenv("DRAFT_LEAGUE_ID", "l1")
	t.Setenv("DRAFT_USER_ID", "alice")
	t.Setenv("DRAFT_TEAM_ID", "3")
	t.Setenv("LOG_LEVEL", "")

	cfg := NewClientConfigFromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8081", cfg.GatewayURL)
	assert.Equal(t, 3, cfg.TeamID)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())

	assert.Error(t, ClientConfig{UserID: "alice"}.Validate())
	assert.Error(t, ClientConfig{LeagueID: "l1"}.Validate())
	assert.Error(t, ClientConfig{LeagueID: "l1", UserID: "alice", TeamID: -1}.Validate())
}
