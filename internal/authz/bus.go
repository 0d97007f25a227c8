package authz

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 32

// SessionEvent is a change of one user's session.
type SessionEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	SignedOut bool      `json:"signed_out"`
}

// Bus fans session events out to subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[uint64]chan SessionEvent
	next uint64
}

func NewBus() *Bus {
	return &Bus{subs: map[uint64]chan SessionEvent{}}
}

// Subscribe returns the event channel and a cancel func that closes it.
func (b *Bus) Subscribe() (<-chan SessionEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan SessionEvent, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber without blocking and returns how many
// received it. A subscriber with a full buffer misses the event.
func (b *Bus) Publish(ev SessionEvent) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			log.Warn().Str("user_id", ev.UserID.String()).Msg("session subscriber lagging; event dropped")
		}
	}
	return delivered
}
