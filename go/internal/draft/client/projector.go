package client

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/room"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// DefaultTurnEndingThreshold is when a TurnEndingNotice fires, in seconds remaining.
const DefaultTurnEndingThreshold = 10

// Projector folds coordinator events into a local replica of the room using the same
// reducer as the coordinator. Events other than DRAFT_STATUS are ignored until the
// first snapshot arrives.
type Projector struct {
	mu       sync.RWMutex
	state    models.Room
	ready    bool
	userID   string
	teamID   int
	warnedAt int // overall pick number of the last TurnEndingNotice

	notifier  Notifier
	threshold int
}

// NewProjector returns an empty projector. notifier may be nil.
func NewProjector(notifier Notifier, threshold int) *Projector {
	if threshold <= 0 {
		threshold = DefaultTurnEndingThreshold
	}
	return &Projector{notifier: notifier, threshold: threshold}
}

// SetIdentity records who the local user is, for IsMyTurn and notices.
func (p *Projector) SetIdentity(userID string, teamID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userID = userID
	p.teamID = teamID
}

// Apply folds one event. Types that carry no room state are ignored.
func (p *Projector) Apply(env events.Envelope) error {
	switch env.Type {
	case events.TypeDraftStatus, events.TypePickMade, events.TypeTimerUpdate,
		events.TypeUserJoined, events.TypeUserLeft, events.TypeChatMessage:
	default:
		return nil
	}

	p.mu.Lock()
	if !p.ready && env.Type != events.TypeDraftStatus {
		p.mu.Unlock()
		log.Debug().Str("event_type", string(env.Type)).Msg("ignoring event before first snapshot")
		return nil
	}
	next, err := room.Apply(p.state, env)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.state = next
	p.ready = true
	notices := p.noticesLocked(env)
	p.mu.Unlock()

	if p.notifier != nil {
		for _, n := range notices {
			notifySafely(p.notifier, n)
		}
	}
	return nil
}

// Seed replaces the replica with a snapshot fetched out of band.
func (p *Projector) Seed(status events.DraftStatusPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = room.ApplyStatus(status)
	p.ready = true
}

func (p *Projector) noticesLocked(env events.Envelope) []Notice {
	var out []Notice
	switch env.Type {
	case events.TypePickMade:
		var pm events.PickMadePayload
		if env.DecodeData(&pm) == nil {
			out = append(out, PickMadeNotice{
				LeagueID:   pm.LeagueID,
				TeamID:     pm.TeamID,
				PlayerID:   pm.PlayerID,
				PickNumber: pm.PickNumber,
				Round:      pm.Round,
				AutoPick:   pm.AutoPick,
				Mine:       p.teamID != 0 && pm.TeamID == p.teamID,
			})
		}
	case events.TypeChatMessage:
		var cm events.ChatMessagePayload
		if env.DecodeData(&cm) == nil && cm.IsTradeProposal && cm.UserID != p.userID {
			out = append(out, TradeProposalNotice{
				LeagueID:   cm.LeagueID,
				MessageID:  cm.ID,
				FromUserID: cm.UserID,
				Message:    cm.Message,
			})
		}
	}

	if n, ok := p.turnEndingLocked(); ok {
		out = append(out, n)
	}
	return out
}

func (p *Projector) turnEndingLocked() (Notice, bool) {
	s := p.state
	if !p.isMyTurnLocked() || s.Status != models.RoomStatusActive || s.IsPaused {
		return nil, false
	}
	if s.TimeRemainingSeconds > p.threshold {
		return nil, false
	}
	slot, done := room.Position(s)
	if done || slot.Overall == p.warnedAt {
		return nil, false
	}
	p.warnedAt = slot.Overall
	return TurnEndingNotice{
		LeagueID:      s.LeagueID,
		TeamID:        p.teamID,
		PickNumber:    slot.Overall,
		TimeRemaining: s.TimeRemainingSeconds,
	}, true
}

func (p *Projector) isMyTurnLocked() bool {
	return p.ready && p.teamID != 0 && p.state.CurrentPicker == p.teamID
}

// State returns a copy of the replica and whether a snapshot has been received.
func (p *Projector) State() (models.Room, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone(), p.ready
}

// IsMyTurn reports whether the local team is on the clock.
func (p *Projector) IsMyTurn() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isMyTurnLocked()
}

// TeamID is the local user's team, 0 for observers.
func (p *Projector) TeamID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.teamID
}

// Reset drops the replica. Identity is kept.
func (p *Projector) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = models.Room{}
	p.ready = false
	p.warnedAt = 0
}
