// Package coordinator is the authoritative side of a draft room: one actor per league that
// serializes joins, picks, pauses, chat and clock ticks, and a Registry that owns the actors.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
)

type options struct {
	clock        clockwork.Clock
	strategy     AutoPickStrategy
	tickInterval time.Duration
	inboxSize    int
}

// Option configures a Registry.
type Option func(*options)

// WithClock replaces the real clock, typically with a clockwork.FakeClock in tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithAutoPickStrategy sets the strategy used by rooms with ExpiryAutoPick.
func WithAutoPickStrategy(s AutoPickStrategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithTickInterval sets the pick clock resolution. Zero disables the background ticker;
// rooms then only advance through Room.Tick.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tickInterval = d }
}

// WithInboxSize sets the per-room command buffer.
func WithInboxSize(n int) Option {
	return func(o *options) { o.inboxSize = n }
}

// Registry creates and looks up rooms by league id.
type Registry struct {
	out  Broadcaster
	opts options

	mu    sync.RWMutex
	rooms map[string]*Room

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry returns an empty registry whose rooms publish to out.
func NewRegistry(out Broadcaster, opts ...Option) *Registry {
	o := options{
		clock:        clockwork.NewRealClock(),
		strategy:     BestAvailableStrategy{},
		tickInterval: time.Second,
		inboxSize:    64,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if out == nil {
		out = Discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		out:    out,
		opts:   o,
		rooms:  make(map[string]*Room),
		ctx:    ctx,
		cancel: cancel,
	}
}

// CreateRoom starts a room actor for cfg.LeagueID.
func (g *Registry) CreateRoom(cfg RoomConfig) (*Room, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room config: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctx.Err() != nil {
		return nil, ErrRoomClosed
	}
	if _, ok := g.rooms[cfg.LeagueID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, cfg.LeagueID)
	}

	r := newRoom(g.ctx, cfg, g.opts, g.out)
	g.rooms[cfg.LeagueID] = r

	log.Info().
		Str("league_id", cfg.LeagueID).
		Str("draft_format", string(cfg.DraftFormat)).
		Int("team_count", cfg.TeamCount).
		Int("total_rounds", cfg.TotalRounds).
		Str("expiry_policy", string(r.policy)).
		Msg("room created")
	return r, nil
}

// Room returns the room for leagueID or an UNKNOWN_ROOM rejection.
func (g *Registry) Room(leagueID string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[leagueID]
	if !ok {
		return nil, reject(events.ReasonUnknownRoom, "no room for league %s", leagueID)
	}
	return r, nil
}

// LeagueIDs lists every room, sorted.
func (g *Registry) LeagueIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RemoveRoom stops and forgets a room.
func (g *Registry) RemoveRoom(leagueID string) error {
	g.mu.Lock()
	r, ok := g.rooms[leagueID]
	delete(g.rooms, leagueID)
	g.mu.Unlock()
	if !ok {
		return reject(events.ReasonUnknownRoom, "no room for league %s", leagueID)
	}
	r.Close()
	return nil
}

// Close stops every room.
func (g *Registry) Close() {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.rooms = make(map[string]*Room)
	g.mu.Unlock()

	g.cancel()
	for _, r := range rooms {
		<-r.done
	}
	log.Info().Int("rooms", len(rooms)).Msg("registry closed")
}

func (g *Registry) Join(ctx context.Context, leagueID, userID string, teamID int) error {
	r, err := g.Room(leagueID)
	if err != nil {
		return err
	}
	return r.Join(ctx, userID, teamID)
}

func (g *Registry) Leave(ctx context.Context, leagueID, userID string) error {
	r, err := g.Room(leagueID)
	if err != nil {
		return err
	}
	return r.Leave(ctx, userID)
}

func (g *Registry) SubmitPick(ctx context.Context, leagueID string, teamID int, playerID string) (models.DraftPick, error) {
	r, err := g.Room(leagueID)
	if err != nil {
		return models.DraftPick{}, err
	}
	return r.SubmitPick(ctx, teamID, playerID)
}

func (g *Registry) TogglePause(ctx context.Context, leagueID string) (bool, error) {
	r, err := g.Room(leagueID)
	if err != nil {
		return false, err
	}
	return r.TogglePause(ctx)
}

func (g *Registry) SendChat(ctx context.Context, leagueID, userID, text string, isTradeProposal bool) (models.ChatMessage, error) {
	r, err := g.Room(leagueID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	return r.SendChat(ctx, userID, text, isTradeProposal)
}

func (g *Registry) StartDraft(ctx context.Context, leagueID string) error {
	r, err := g.Room(leagueID)
	if err != nil {
		return err
	}
	return r.Start(ctx)
}

func (g *Registry) Snapshot(ctx context.Context, leagueID string) (models.Room, error) {
	r, err := g.Room(leagueID)
	if err != nil {
		return models.Room{}, err
	}
	return r.Snapshot(ctx)
}
