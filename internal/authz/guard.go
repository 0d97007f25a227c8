package authz

import (
	"context"

	"github.com/rs/zerolog/log"

	"affiliate-gateway/internal/cache"
)

// Guard is one mounted protected surface. It re-evaluates whenever the session of
// its user changes and keeps the latest decision.
type Guard struct {
	router     *Router
	surface    Surface
	session    *Session
	latest     cache.Snapshot[Decision]
	onDecision func(Decision)
	done       chan struct{}
}

// Mount evaluates initial for surface right away, then keeps following bus until
// ctx is done. onDecision, if set, receives every decision, the first one included.
func (rt *Router) Mount(ctx context.Context, surface Surface, initial *Session, bus *Bus, onDecision func(Decision)) *Guard {
	g := &Guard{
		router:     rt,
		surface:    surface,
		onDecision: onDecision,
		done:       make(chan struct{}),
	}
	events, cancel := bus.Subscribe()
	g.apply(ctx, initial)
	go g.run(ctx, events, cancel)
	return g
}

// Decision is the most recent decision.
func (g *Guard) Decision() Decision {
	d, _ := g.latest.Load()
	return d
}

// Done is closed once the guard stopped following session events.
func (g *Guard) Done() <-chan struct{} { return g.done }

func (g *Guard) run(ctx context.Context, events <-chan SessionEvent, cancel func()) {
	defer close(g.done)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if next, applies := g.next(ev); applies {
				g.apply(ctx, next)
			}
		}
	}
}

// next derives the session after ev. Events for other users do not apply.
func (g *Guard) next(ev SessionEvent) (*Session, bool) {
	cur := g.session
	if cur == nil || ev.UserID != cur.UserID {
		return nil, false
	}
	if ev.SignedOut {
		return nil, true
	}
	s := *cur
	if ev.Email != "" {
		s.Email = ev.Email
	}
	return &s, true
}

func (g *Guard) apply(ctx context.Context, s *Session) {
	d := g.router.Evaluate(ctx, s, g.surface)
	g.session = s
	g.latest.Store(d)
	log.Debug().
		Str("surface", string(g.surface)).
		Str("state", string(d.State)).
		Bool("allowed", d.Allowed).
		Msg("surface decision")
	if g.onDecision != nil {
		g.onDecision(d)
	}
}
