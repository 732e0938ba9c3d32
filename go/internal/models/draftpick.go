package models

import (
	"time"
)

// DraftPick represents a single committed pick in a draft. Immutable once committed.
type DraftPick struct {
	TeamID            int       `json:"team_id"`
	PlayerID          string    `json:"player_id"`
	OverallPickNumber int       `json:"overall_pick"`
	Round             int       `json:"round"`
	Pick              int       `json:"pick"` // pick number in the round
	AutoPick          bool      `json:"auto_pick"`
	CommittedAt       time.Time `json:"committed_at"`
}

// ChatMessage is one entry in a room's chat window.
type ChatMessage struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Text            string    `json:"text"`
	SentAt          time.Time `json:"sent_at"`
	IsTradeProposal bool      `json:"is_trade_proposal"`
}
