package coordinator

import (
	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

// Broadcaster delivers a room event to every subscriber of the league.
// Implementations must not block; the room loop calls Broadcast inline.
type Broadcaster interface {
	Broadcast(leagueID string, env events.Envelope)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(leagueID string, env events.Envelope)

func (f BroadcasterFunc) Broadcast(leagueID string, env events.Envelope) {
	f(leagueID, env)
}

// FanOut sends every event to each of its broadcasters in order.
type FanOut []Broadcaster

func (f FanOut) Broadcast(leagueID string, env events.Envelope) {
	for _, b := range f {
		if b != nil {
			b.Broadcast(leagueID, env)
		}
	}
}

// Discard drops every event.
var Discard Broadcaster = BroadcasterFunc(func(string, events.Envelope) {})
