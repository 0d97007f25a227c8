package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"affiliate-gateway/internal/authz"
	"affiliate-gateway/internal/storage"
)

// ListenSessions relays session change notifications from Postgres onto bus until
// ctx is done, reconnecting with jittered backoff.
func ListenSessions(ctx context.Context, st *storage.Store, bus *authz.Bus, channel string, baseBackoff time.Duration) {
	if channel == "" {
		channel = st.ListenChannel()
	}
	for {
		err := listenOnce(ctx, st, bus, channel)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Dur("retry_in", backoff).Msg("session listener error")
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		case <-time.After(backoff):
		}
	}
}

func listenOnce(ctx context.Context, st *storage.Store, bus *authz.Bus, channel string) error {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn for listen: %w", err)
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	log.Info().Str("channel", channel).Msg("listening for session changes")

	for {
		ntf, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		ev, err := DecodeEvent(ntf.Payload)
		if err != nil {
			log.Warn().Err(err).Str("channel", ntf.Channel).Msg("bad session event payload")
			continue
		}
		n := bus.Publish(ev)
		log.Debug().Str("user_id", ev.UserID.String()).Bool("signed_out", ev.SignedOut).Int("subscribers", n).
			Msg("session change relayed")
	}
}

// DecodeEvent parses a NOTIFY payload such as
// {"user_id":"<uuid>","email":"a@b.c","signed_out":true}.
func DecodeEvent(payload string) (authz.SessionEvent, error) {
	var ev authz.SessionEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return authz.SessionEvent{}, fmt.Errorf("decode session event: %w", err)
	}
	if ev.UserID == uuid.Nil {
		return authz.SessionEvent{}, fmt.Errorf("decode session event: missing user_id")
	}
	return ev, nil
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
