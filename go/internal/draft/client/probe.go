package client

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// LivenessProbe tells the manager when to check whether its session is still alive.
// The host decides what that means: a visibility callback, a network change event,
// or a plain poll.
type LivenessProbe interface {
	Run(ctx context.Context, check func(context.Context))
}

// PeriodicProbe checks on a fixed interval.
type PeriodicProbe struct {
	Interval time.Duration
	Clock    clockwork.Clock
}

func (p PeriodicProbe) Run(ctx context.Context, check func(context.Context)) {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ticker := clock.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			check(ctx)
		}
	}
}

// SignalProbe checks every time the host sends on the channel, for example when an
// application returns to the foreground.
type SignalProbe <-chan struct{}

func (p SignalProbe) Run(ctx context.Context, check func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-p:
			if !ok {
				return
			}
			check(ctx)
		}
	}
}

// WatchLiveness runs probe until ctx is done, calling CheckLiveness on every signal.
func (m *Manager) WatchLiveness(ctx context.Context, probe LivenessProbe) {
	probe.Run(ctx, func(ctx context.Context) {
		if err := m.CheckLiveness(ctx); err != nil {
			log.Warn().Err(err).Msg("liveness check failed")
		}
	})
}
