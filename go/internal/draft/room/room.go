// Package room holds the draft room state model and the reducer that folds events into it.
//
// The coordinator and every client run the same reducer, so a client replica and the
// authoritative room converge as long as both see the same event stream.
package room

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/pickorder"
	"github.com/mcdev12/draftroom/go/internal/models"
)

var (
	ErrUnknownEvent   = errors.New("event type does not change room state")
	ErrLeagueMismatch = errors.New("event belongs to a different league")
)

// Settings are fixed when a room is created.
type Settings struct {
	LeagueID           string
	DraftFormat        models.DraftFormat
	TeamCount          int
	TotalRounds        int
	TimePerPickSeconds int
	ScheduledAt        *time.Time
}

// Validate checks the settings a room cannot change later.
func (s Settings) Validate() error {
	if s.LeagueID == "" {
		return fmt.Errorf("league_id is required")
	}
	if !s.DraftFormat.Valid() {
		return fmt.Errorf("unsupported draft format %q", s.DraftFormat)
	}
	if s.TeamCount < 1 {
		return fmt.Errorf("team_count must be greater than 0")
	}
	if s.TotalRounds < 1 {
		return fmt.Errorf("total_rounds must be greater than 0")
	}
	if s.TimePerPickSeconds < 1 {
		return fmt.Errorf("time_per_pick_sec must be greater than 0")
	}
	return nil
}

// New returns a room in WAITING status.
func New(s Settings) models.Room {
	r := models.Room{
		LeagueID:             s.LeagueID,
		Status:               models.RoomStatusWaiting,
		DraftFormat:          s.DraftFormat,
		TeamCount:            s.TeamCount,
		TotalRounds:          s.TotalRounds,
		TimePerPickSeconds:   s.TimePerPickSeconds,
		TimeRemainingSeconds: s.TimePerPickSeconds,
		Participants:         make(map[string]models.Participant),
		Picks:                []models.DraftPick{},
		SkippedPicks:         []int{},
		ChatMessages:         []models.ChatMessage{},
	}
	if s.ScheduledAt != nil {
		t := *s.ScheduledAt
		r.ScheduledAt = &t
	}
	return r
}

// Position derives the slot on the clock from the number of consumed slots.
// done is true once every slot has been used.
func Position(r models.Room) (slot pickorder.Slot, done bool) {
	used := r.SlotsUsed()
	if used >= r.TotalPicks() {
		return pickorder.Slot{}, true
	}
	return pickorder.SlotFor(used+1, r.TeamCount, r.DraftFormat), false
}

// Apply folds a coordinator event into state and returns the new state.
// The input state is never modified.
func Apply(state models.Room, env events.Envelope) (models.Room, error) {
	switch env.Type {
	case events.TypeDraftStatus:
		var p events.DraftStatusPayload
		if err := env.DecodeData(&p); err != nil {
			return state, err
		}
		return ApplyStatus(p), nil

	case events.TypePickMade:
		var p events.PickMadePayload
		if err := env.DecodeData(&p); err != nil {
			return state, err
		}
		if err := checkLeague(state, p.LeagueID); err != nil {
			return state, err
		}
		return ApplyPickMade(state, p), nil

	case events.TypeTimerUpdate:
		var p events.TimerUpdatePayload
		if err := env.DecodeData(&p); err != nil {
			return state, err
		}
		if err := checkLeague(state, p.LeagueID); err != nil {
			return state, err
		}
		return ApplyTimerUpdate(state, p), nil

	case events.TypeUserJoined, events.TypeUserLeft:
		var p events.PresencePayload
		if err := env.DecodeData(&p); err != nil {
			return state, err
		}
		if err := checkLeague(state, p.LeagueID); err != nil {
			return state, err
		}
		if env.Type == events.TypeUserJoined {
			return ApplyUserJoined(state, p), nil
		}
		return ApplyUserLeft(state, p), nil

	case events.TypeChatMessage:
		var p events.ChatMessagePayload
		if err := env.DecodeData(&p); err != nil {
			return state, err
		}
		if err := checkLeague(state, p.LeagueID); err != nil {
			return state, err
		}
		return ApplyChat(state, p), nil

	default:
		return state, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Type)
	}
}

// ApplyStatus builds a room from a full snapshot. Nothing from the previous state survives.
func ApplyStatus(p events.DraftStatusPayload) models.Room {
	r := models.Room{
		LeagueID:             p.LeagueID,
		Status:               models.RoomStatus(p.Status),
		DraftFormat:          models.DraftFormat(p.DraftFormat),
		TeamCount:            p.TeamCount,
		TotalRounds:          p.TotalRounds,
		TimePerPickSeconds:   p.TimePerPickSeconds,
		CurrentRound:         p.CurrentRound,
		CurrentPick:          p.CurrentPick,
		CurrentPicker:        p.CurrentPicker,
		TimeRemainingSeconds: p.TimeRemaining,
		IsPaused:             p.IsPaused,
		Participants:         make(map[string]models.Participant, len(p.Participants)),
		Picks:                make([]models.DraftPick, 0, len(p.Picks)),
		SkippedPicks:         append([]int{}, p.SkippedPicks...),
		ChatMessages:         make([]models.ChatMessage, 0, len(p.ChatMessages)),
	}
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		r.ScheduledAt = &t
	}
	for _, pp := range p.Participants {
		r.Participants[pp.UserID] = models.Participant{
			UserID:     pp.UserID,
			TeamID:     pp.TeamID,
			IsOnline:   pp.IsOnline,
			LastSeenAt: pp.LastSeenAt,
		}
	}
	for _, pk := range p.Picks {
		r.Picks = append(r.Picks, models.DraftPick{
			TeamID:            pk.TeamID,
			PlayerID:          pk.PlayerID,
			OverallPickNumber: pk.PickNumber,
			Round:             pk.Round,
			Pick:              pk.PickInRound,
			AutoPick:          pk.AutoPick,
			CommittedAt:       pk.CommittedAt,
		})
	}
	for _, m := range p.ChatMessages {
		r.ChatMessages = AppendChat(r.ChatMessages, chatFromPayload(m))
	}
	return r
}

// ApplyPickMade appends the pick and takes the next position from the payload.
func ApplyPickMade(state models.Room, p events.PickMadePayload) models.Room {
	r := state.Clone()
	r.Picks = append(r.Picks, models.DraftPick{
		TeamID:            p.TeamID,
		PlayerID:          p.PlayerID,
		OverallPickNumber: p.PickNumber,
		Round:             p.Round,
		Pick:              p.PickInRound,
		AutoPick:          p.AutoPick,
		CommittedAt:       p.Timestamp,
	})
	if p.Status != "" {
		r.Status = models.RoomStatus(p.Status)
	}
	r.CurrentRound = p.CurrentRound
	r.CurrentPick = p.CurrentPick
	r.CurrentPicker = p.CurrentPicker
	r.TimeRemainingSeconds = p.TimeRemaining
	r.IsPaused = r.Status == models.RoomStatusPaused
	return r
}

// ApplyTimerUpdate sets the countdown fields and records a forced skip if there was one.
func ApplyTimerUpdate(state models.Room, p events.TimerUpdatePayload) models.Room {
	r := state.Clone()
	if p.Status != "" {
		r.Status = models.RoomStatus(p.Status)
	}
	r.TimeRemainingSeconds = p.TimeRemaining
	r.CurrentPicker = p.CurrentPicker
	r.CurrentRound = p.CurrentRound
	r.CurrentPick = p.CurrentPick
	r.IsPaused = p.IsPaused
	if p.SkippedPick > 0 && !containsInt(r.SkippedPicks, p.SkippedPick) {
		r.SkippedPicks = append(r.SkippedPicks, p.SkippedPick)
	}
	return r
}

// ApplyUserJoined marks one participant online, creating the entry on first join.
func ApplyUserJoined(state models.Room, p events.PresencePayload) models.Room {
	r := state.Clone()
	if r.Participants == nil {
		r.Participants = make(map[string]models.Participant)
	}
	r.Participants[p.UserID] = models.Participant{
		UserID:     p.UserID,
		TeamID:     p.TeamID,
		IsOnline:   true,
		LastSeenAt: p.Timestamp,
	}
	return r
}

// ApplyUserLeft marks one participant offline. The entry is kept as a presence record.
func ApplyUserLeft(state models.Room, p events.PresencePayload) models.Room {
	r := state.Clone()
	if r.Participants == nil {
		r.Participants = make(map[string]models.Participant)
	}
	existing, ok := r.Participants[p.UserID]
	if !ok {
		existing = models.Participant{UserID: p.UserID, TeamID: p.TeamID}
	}
	if p.TeamID != 0 {
		existing.TeamID = p.TeamID
	}
	existing.IsOnline = false
	existing.LastSeenAt = p.Timestamp
	r.Participants[p.UserID] = existing
	return r
}

// ApplyChat appends a chat message to the bounded window.
func ApplyChat(state models.Room, p events.ChatMessagePayload) models.Room {
	r := state.Clone()
	if p.ID != "" {
		for _, m := range r.ChatMessages {
			if m.ID == p.ID {
				return r
			}
		}
	}
	r.ChatMessages = AppendChat(r.ChatMessages, chatFromPayload(p))
	return r
}

// AppendChat appends m and evicts the oldest entries beyond models.MaxChatMessages.
// The returned slice never aliases msgs.
func AppendChat(msgs []models.ChatMessage, m models.ChatMessage) []models.ChatMessage {
	start := 0
	if len(msgs)+1 > models.MaxChatMessages {
		start = len(msgs) + 1 - models.MaxChatMessages
	}
	out := make([]models.ChatMessage, 0, len(msgs)-start+1)
	out = append(out, msgs[start:]...)
	return append(out, m)
}

// SortedParticipants returns participants ordered by team, then user id.
func SortedParticipants(r models.Room) []models.Participant {
	out := make([]models.Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeamID != out[j].TeamID {
			return out[i].TeamID < out[j].TeamID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// StatusPayload renders the full snapshot broadcast as DRAFT_STATUS.
func StatusPayload(r models.Room) events.DraftStatusPayload {
	p := events.DraftStatusPayload{
		LeagueID:           r.LeagueID,
		Status:             string(r.Status),
		DraftFormat:        string(r.DraftFormat),
		TeamCount:          r.TeamCount,
		TotalRounds:        r.TotalRounds,
		TimePerPickSeconds: r.TimePerPickSeconds,
		CurrentRound:       r.CurrentRound,
		CurrentPick:        r.CurrentPick,
		CurrentPicker:      r.CurrentPicker,
		TimeRemaining:      r.TimeRemainingSeconds,
		IsPaused:           r.IsPaused,
		Participants:       make([]events.ParticipantPayload, 0, len(r.Participants)),
		Picks:              make([]events.PickPayload, 0, len(r.Picks)),
		SkippedPicks:       append([]int{}, r.SkippedPicks...),
		ChatMessages:       make([]events.ChatMessagePayload, 0, len(r.ChatMessages)),
	}
	if r.ScheduledAt != nil {
		t := *r.ScheduledAt
		p.ScheduledAt = &t
	}
	for _, pp := range SortedParticipants(r) {
		p.Participants = append(p.Participants, events.ParticipantPayload{
			UserID:     pp.UserID,
			TeamID:     pp.TeamID,
			IsOnline:   pp.IsOnline,
			LastSeenAt: pp.LastSeenAt,
		})
	}
	for _, pk := range r.Picks {
		p.Picks = append(p.Picks, events.PickPayload{
			TeamID:      pk.TeamID,
			PlayerID:    pk.PlayerID,
			PickNumber:  pk.OverallPickNumber,
			Round:       pk.Round,
			PickInRound: pk.Pick,
			AutoPick:    pk.AutoPick,
			CommittedAt: pk.CommittedAt,
		})
	}
	for _, m := range r.ChatMessages {
		p.ChatMessages = append(p.ChatMessages, events.ChatMessagePayload{
			ID:              m.ID,
			LeagueID:        r.LeagueID,
			UserID:          m.UserID,
			Message:         m.Text,
			Timestamp:       m.SentAt,
			IsTradeProposal: m.IsTradeProposal,
		})
	}
	return p
}

func chatFromPayload(p events.ChatMessagePayload) models.ChatMessage {
	return models.ChatMessage{
		ID:              p.ID,
		UserID:          p.UserID,
		Text:            p.Message,
		SentAt:          p.Timestamp,
		IsTradeProposal: p.IsTradeProposal,
	}
}

func checkLeague(state models.Room, leagueID string) error {
	if state.LeagueID != "" && leagueID != "" && state.LeagueID != leagueID {
		return fmt.Errorf("%w: have %s, got %s", ErrLeagueMismatch, state.LeagueID, leagueID)
	}
	return nil
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
