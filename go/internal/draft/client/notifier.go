package client

import (
	"github.com/rs/zerolog/log"
)

// NoticeKind names a condition worth telling the user about.
type NoticeKind string

const (
	NoticePickMade      NoticeKind = "PICK_MADE"
	NoticeTurnEnding    NoticeKind = "TURN_ENDING"
	NoticeTradeProposal NoticeKind = "TRADE_PROPOSAL"
)

// Notice is one condition emitted by the projector.
type Notice interface {
	Kind() NoticeKind
}

type PickMadeNotice struct {
	LeagueID   string
	TeamID     int
	PlayerID   string
	PickNumber int
	Round      int
	AutoPick   bool
	// Mine is set when the pick was made for the local user's team.
	Mine bool
}

func (PickMadeNotice) Kind() NoticeKind { return NoticePickMade }

// TurnEndingNotice is emitted once per pick when the local team is on the clock
// and the countdown crosses the warning threshold.
type TurnEndingNotice struct {
	LeagueID      string
	TeamID        int
	PickNumber    int
	TimeRemaining int
}

func (TurnEndingNotice) Kind() NoticeKind { return NoticeTurnEnding }

type TradeProposalNotice struct {
	LeagueID   string
	MessageID  string
	FromUserID string
	Message    string
}

func (TradeProposalNotice) Kind() NoticeKind { return NoticeTradeProposal }

// Notifier receives notices. Rendering them is up to the implementation.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

func notifySafely(n Notifier, notice Notice) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("notice", string(notice.Kind())).
				Msg("notifier panicked")
		}
	}()
	n.Notify(notice)
}
