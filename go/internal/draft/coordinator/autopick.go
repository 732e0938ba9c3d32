package coordinator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/mcdev12/draftroom/go/internal/models"
)

var ErrNoPlayersAvailable = errors.New("no available players")

// ExpiryPolicy decides what happens when the pick clock reaches zero.
type ExpiryPolicy string

const (
	// ExpirySkip forfeits the slot: no pick is recorded and the next team is put on the clock.
	ExpirySkip ExpiryPolicy = "SKIP"
	// ExpiryAutoPick drafts a player for the team on the clock, falling back to a skip
	// when the strategy cannot produce one.
	ExpiryAutoPick ExpiryPolicy = "AUTO_PICK"
)

// Valid reports whether p is a known policy.
func (p ExpiryPolicy) Valid() bool {
	return p == ExpirySkip || p == ExpiryAutoPick
}

// AutoPickStrategy chooses a player for a team whose clock expired.
type AutoPickStrategy interface {
	// SelectPlayer returns one id from available. available is in pool order and never contains drafted players.
	SelectPlayer(ctx context.Context, state models.Room, teamID int, available []string) (string, error)
}

// AvailablePlayers filters pool down to players not yet drafted in state, keeping pool order.
func AvailablePlayers(state models.Room, pool []string) []string {
	taken := make(map[string]struct{}, len(state.Picks))
	for _, p := range state.Picks {
		taken[p.PlayerID] = struct{}{}
	}
	out := make([]string, 0, len(pool))
	for _, id := range pool {
		if _, ok := taken[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// BestAvailableStrategy takes the highest ranked player left. The pool is assumed to be ranked.
type BestAvailableStrategy struct{}

func (BestAvailableStrategy) SelectPlayer(_ context.Context, _ models.Room, _ int, available []string) (string, error) {
	if len(available) == 0 {
		return "", ErrNoPlayersAvailable
	}
	return available[0], nil
}

// RandomStrategy uses random choice for the player.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed.
func NewRandomStrategy() *RandomStrategy {
	return NewRandomStrategyWithSeed(time.Now().UnixNano())
}

// NewRandomStrategyWithSeed is NewRandomStrategy with a fixed seed.
func NewRandomStrategyWithSeed(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

// RandomStrategyForSeed returns a time-seeded strategy for seed 0 and a fixed-seed one otherwise.
func RandomStrategyForSeed(seed int64) *RandomStrategy {
	if seed == 0 {
		return NewRandomStrategy()
	}
	return NewRandomStrategyWithSeed(seed)
}

func (s *RandomStrategy) SelectPlayer(_ context.Context, _ models.Room, _ int, available []string) (string, error) {
	if len(available) == 0 {
		return "", ErrNoPlayersAvailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return available[s.rng.Intn(len(available))], nil
}
