package models

import (
	"time"
)

// DraftFormat defines how pick order evolves from round to round.
type DraftFormat string

const (
	DraftFormatSnake  DraftFormat = "SNAKE"
	DraftFormatLinear DraftFormat = "LINEAR"
)

// Valid reports whether f is a known draft format.
func (f DraftFormat) Valid() bool {
	return f == DraftFormatSnake || f == DraftFormatLinear
}

// RoomStatus defines the lifecycle status of a draft room.
type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "WAITING"
	RoomStatusActive    RoomStatus = "ACTIVE"
	RoomStatusPaused    RoomStatus = "PAUSED"
	RoomStatusCompleted RoomStatus = "COMPLETED"
)

// MaxChatMessages is the size of the chat sliding window kept per room.
const MaxChatMessages = 100

// Participant is the presence record of one user in a room.
type Participant struct {
	UserID     string    `json:"user_id"`
	TeamID     int       `json:"team_id"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Room represents one league's live draft session.
type Room struct {
	LeagueID           string      `json:"league_id"`
	Status             RoomStatus  `json:"status"`
	DraftFormat        DraftFormat `json:"draft_format"`
	TeamCount          int         `json:"team_count"`
	TotalRounds        int         `json:"total_rounds"`
	TimePerPickSeconds int         `json:"time_per_pick_sec"`
	ScheduledAt        *time.Time  `json:"scheduled_at,omitempty"`

	CurrentRound         int  `json:"current_round"`
	CurrentPick          int  `json:"current_pick"` // pick number within the round
	CurrentPicker        int  `json:"current_picker"`
	TimeRemainingSeconds int  `json:"time_remaining_sec"`
	IsPaused             bool `json:"is_paused"`

	Participants map[string]Participant `json:"participants"`
	Picks        []DraftPick            `json:"picks"`
	SkippedPicks []int                  `json:"skipped_picks"` // overall pick numbers forfeited on timer expiry
	ChatMessages []ChatMessage          `json:"chat_messages"`
}

// TotalPicks is the number of slots in the draft.
func (r *Room) TotalPicks() int {
	return r.TeamCount * r.TotalRounds
}

// SlotsUsed counts slots that have been consumed by a pick or a skip.
func (r *Room) SlotsUsed() int {
	return len(r.Picks) + len(r.SkippedPicks)
}

// HasPlayer reports whether playerID has already been drafted in this room.
func (r *Room) HasPlayer(playerID string) bool {
	for _, p := range r.Picks {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand out state without sharing slices or maps.
func (r Room) Clone() Room {
	out := r
	if r.ScheduledAt != nil {
		t := *r.ScheduledAt
		out.ScheduledAt = &t
	}
	if r.Participants != nil {
		out.Participants = make(map[string]Participant, len(r.Participants))
		for k, v := range r.Participants {
			out.Participants[k] = v
		}
	}
	if r.Picks != nil {
		out.Picks = append([]DraftPick(nil), r.Picks...)
	}
	if r.SkippedPicks != nil {
		out.SkippedPicks = append([]int(nil), r.SkippedPicks...)
	}
	if r.ChatMessages != nil {
		out.ChatMessages = append([]ChatMessage(nil), r.ChatMessages...)
	}
	return out
}
