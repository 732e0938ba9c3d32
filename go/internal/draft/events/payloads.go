package events

import (
	"time"
)

// Event payload types shared by the coordinator, the gateway and clients.

// ParticipantPayload is one presence entry in a DRAFT_STATUS snapshot.
type ParticipantPayload struct {
	UserID     string    `json:"userId"`
	TeamID     int       `json:"teamId"`
	IsOnline   bool      `json:"isOnline"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// PickPayload is one committed pick inside a DRAFT_STATUS snapshot.
type PickPayload struct {
	TeamID      int       `json:"teamId"`
	PlayerID    string    `json:"playerId"`
	PickNumber  int       `json:"pickNumber"`
	Round       int       `json:"round"`
	PickInRound int       `json:"pickInRound"`
	AutoPick    bool      `json:"autoPick,omitempty"`
	CommittedAt time.Time `json:"committedAt"`
}

// DraftStatusPayload is a full snapshot of a room. Clients replace their replica with it.
type DraftStatusPayload struct {
	LeagueID           string               `json:"leagueId"`
	Status             string               `json:"status"`
	DraftFormat        string               `json:"draftFormat"`
	TeamCount          int                  `json:"teamCount"`
	TotalRounds        int                  `json:"totalRounds"`
	TimePerPickSeconds int                  `json:"timePerPickSeconds"`
	ScheduledAt        *time.Time           `json:"scheduledAt,omitempty"`
	CurrentRound       int                  `json:"currentRound"`
	CurrentPick        int                  `json:"currentPick"`
	CurrentPicker      int                  `json:"currentPicker"`
	TimeRemaining      int                  `json:"timeRemaining"`
	IsPaused           bool                 `json:"isPaused"`
	Participants       []ParticipantPayload `json:"participants"`
	Picks              []PickPayload        `json:"picks"`
	SkippedPicks       []int                `json:"skippedPicks"`
	ChatMessages       []ChatMessagePayload `json:"chatMessages"`
}

// PickMadePayload announces a committed pick together with the position that follows it.
type PickMadePayload struct {
	LeagueID    string    `json:"leagueId"`
	TeamID      int       `json:"teamId"`
	PlayerID    string    `json:"playerId"`
	PickNumber  int       `json:"pickNumber"`
	Round       int       `json:"round"`
	PickInRound int       `json:"pickInRound"`
	AutoPick    bool      `json:"autoPick,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	Status        string `json:"status"`
	CurrentRound  int    `json:"currentRound"`
	CurrentPick   int    `json:"currentPick"`
	CurrentPicker int    `json:"currentPicker"`
	TimeRemaining int    `json:"timeRemaining"`
}

// TimerUpdatePayload carries the countdown and, after a forced skip, the new position.
type TimerUpdatePayload struct {
	LeagueID      string `json:"leagueId"`
	Status        string `json:"status"`
	TimeRemaining int    `json:"timeRemaining"`
	CurrentPicker int    `json:"currentPicker"`
	PickNumber    int    `json:"pickNumber"`
	CurrentRound  int    `json:"currentRound"`
	CurrentPick   int    `json:"currentPick"`
	IsPaused      bool   `json:"isPaused"`
	SkippedPick   int    `json:"skippedPick,omitempty"`
}

// PresencePayload is the payload for USER_JOINED and USER_LEFT.
type PresencePayload struct {
	LeagueID  string    `json:"leagueId"`
	UserID    string    `json:"userId"`
	TeamID    int       `json:"teamId"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessagePayload is used in both directions. Clients set RequestID; the coordinator sets ID.
type ChatMessagePayload struct {
	RequestID       string    `json:"requestId,omitempty"`
	ID              string    `json:"id,omitempty"`
	LeagueID        string    `json:"leagueId"`
	UserID          string    `json:"userId"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
	IsTradeProposal bool      `json:"isTradeProposal,omitempty"`
}

// JoinCommand asks the coordinator to mark a user online for a team.
type JoinCommand struct {
	RequestID string `json:"requestId"`
	LeagueID  string `json:"leagueId"`
	UserID    string `json:"userId"`
	TeamID    int    `json:"teamId"`
}

// MakePickCommand submits a pick for the team on the clock.
type MakePickCommand struct {
	RequestID string `json:"requestId"`
	LeagueID  string `json:"leagueId"`
	TeamID    int    `json:"teamId"`
	PlayerID  string `json:"playerId"`
}

// ToggleTimerCommand pauses or resumes the countdown.
type ToggleTimerCommand struct {
	RequestID string `json:"requestId"`
	LeagueID  string `json:"leagueId"`
}

// CommandAckPayload confirms a command was applied.
type CommandAckPayload struct {
	RequestID string `json:"requestId"`
}

// CommandRejectedPayload is sent only to the issuer of a rejected command.
type CommandRejectedPayload struct {
	RequestID string     `json:"requestId"`
	Code      ReasonCode `json:"code"`
	Reason    string     `json:"reason"`
}
