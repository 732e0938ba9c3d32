// Package config reads gateway settings from the environment and seed rooms from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds gateway process settings.
type Config struct {
	Port           string
	LogLevel       string
	NATSURL        string
	EnableRelay    bool
	RoomsFile      string
	TickInterval   time.Duration
	CommandTimeout time.Duration
	ChatRate       float64
	ChatBurst      int
	AutoPickSeed   int64
}

// NewConfigFromEnv reads GATEWAY_* and related environment variables (with defaults).
func NewConfigFromEnv() Config {
	return Config{
		Port:           getEnv("GATEWAY_PORT", "8081"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		NATSURL:        getEnv("NATS_URL", "nats://localhost:4222"),
		EnableRelay:    getEnvAsBool("RELAY_ENABLED", false),
		RoomsFile:      getEnv("ROOMS_FILE", ""),
		TickInterval:   getEnvAsDuration("TICK_INTERVAL", time.Second),
		CommandTimeout: getEnvAsDuration("COMMAND_TIMEOUT", 5*time.Second),
		ChatRate:       getEnvAsFloat("CHAT_RATE", 2),
		ChatBurst:      getEnvAsInt("CHAT_BURST", 5),
		AutoPickSeed:   int64(getEnvAsInt("AUTO_PICK_SEED", 0)),
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	GatewayURL   string
	LeagueID     string
	UserID       string
	TeamID       int
	LogLevel     string
	ProbeEvery   time.Duration
	AckTimeout   time.Duration
	HeartbeatGap time.Duration
}

// NewClientConfigFromEnv reads DRAFT_* environment variables (with defaults).
func NewClientConfigFromEnv() ClientConfig {
	return ClientConfig{
		GatewayURL:   getEnv("GATEWAY_URL", "http://localhost:8081"),
		LeagueID:     getEnv("DRAFT_LEAGUE_ID", ""),
		UserID:       getEnv("DRAFT_USER_ID", ""),
		TeamID:       getEnvAsInt("DRAFT_TEAM_ID", 0),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		ProbeEvery:   getEnvAsDuration("LIVENESS_PROBE_INTERVAL", 15*time.Second),
		AckTimeout:   getEnvAsDuration("COMMAND_TIMEOUT", 5*time.Second),
		HeartbeatGap: getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second),
	}
}

// Validate checks the identity fields the client cannot default.
func (c ClientConfig) Validate() error {
	if c.LeagueID == "" {
		return fmt.Errorf("DRAFT_LEAGUE_ID is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("DRAFT_USER_ID is required")
	}
	if c.TeamID < 0 {
		return fmt.Errorf("DRAFT_TEAM_ID must not be negative")
	}
	return nil
}

// Level parses LogLevel, falling back to info.
func (c ClientConfig) Level() zerolog.Level {
	return Config{LogLevel: c.LogLevel}.Level()
}
