package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/draftroom/go/internal/draft/coordinator"
	"github.com/mcdev12/draftroom/go/internal/draft/room"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// RoomsFile is the YAML document of rooms created at startup.
type RoomsFile struct {
	Rooms []RoomEntry `yaml:"rooms"`
}

// RoomEntry describes one seeded room.
type RoomEntry struct {
	LeagueID           string         `yaml:"league_id"`
	DraftFormat        string         `yaml:"draft_format"`
	TeamCount          int            `yaml:"team_count"`
	TotalRounds        int            `yaml:"total_rounds"`
	TimePerPickSeconds int            `yaml:"time_per_pick_seconds"`
	ScheduledAt        *time.Time     `yaml:"scheduled_at"`
	ExpiryPolicy       string         `yaml:"expiry_policy"`
	PlayerPool         []string       `yaml:"player_pool"`
	Participants       map[string]int `yaml:"participants"`
}

// RoomConfig converts the entry into coordinator settings.
func (e RoomEntry) RoomConfig() coordinator.RoomConfig {
	return coordinator.RoomConfig{
		Settings: room.Settings{
			LeagueID:           e.LeagueID,
			DraftFormat:        models.DraftFormat(strings.ToUpper(e.DraftFormat)),
			TeamCount:          e.TeamCount,
			TotalRounds:        e.TotalRounds,
			TimePerPickSeconds: e.TimePerPickSeconds,
			ScheduledAt:        e.ScheduledAt,
		},
		ExpiryPolicy: coordinator.ExpiryPolicy(strings.ToUpper(e.ExpiryPolicy)),
		PlayerPool:   e.PlayerPool,
		Participants: e.Participants,
	}
}

// LoadRooms reads and validates a rooms file.
func LoadRooms(path string) ([]coordinator.RoomConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rooms file: %w", err)
	}
	return ParseRooms(data)
}

// ParseRooms decodes a rooms document. Every entry must validate and league ids must be unique.
func ParseRooms(data []byte) ([]coordinator.RoomConfig, error) {
	var file RoomsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rooms file: %w", err)
	}

	seen := make(map[string]bool, len(file.Rooms))
	configs := make([]coordinator.RoomConfig, 0, len(file.Rooms))
	for i, entry := range file.Rooms {
		cfg := entry.RoomConfig()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("room %d (%s): %w", i, entry.LeagueID, err)
		}
		if seen[cfg.LeagueID] {
			return nil, fmt.Errorf("room %d: duplicate league id %s", i, cfg.LeagueID)
		}
		seen[cfg.LeagueID] = true
		configs = append(configs, cfg)
	}
	return configs, nil
}
