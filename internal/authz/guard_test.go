package authz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decisionLog struct {
	mu sync.Mutex
	ds []Decision
}

func (l *decisionLog) add(d Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ds = append(l.ds, d)
}

func (l *decisionLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ds)
}

func TestGuard_FollowsSignOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus()
	rt := NewRouter(adminEmail, &countingChecker{result: true})
	sess := operator()
	var got decisionLog

	g := rt.Mount(ctx, SurfaceOperator, sess, bus, got.add)
	require.True(t, g.Decision().Allowed)
	assert.Equal(t, 1, got.len())

	bus.Publish(SessionEvent{UserID: uuid.New(), SignedOut: true})
	bus.Publish(SessionEvent{UserID: sess.UserID, SignedOut: true})

	require.Eventually(t, func() bool { return got.len() == 2 }, time.Second, 5*time.Millisecond)
	d := g.Decision()
	assert.False(t, d.Allowed)
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.Equal(t, SurfaceLogin, d.Redirect)
	assert.Equal(t, NoticeSignIn, d.Notice)
}

func TestGuard_EmailChangeReevaluates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := &countingChecker{result: true}
	bus := NewBus()
	rt := NewRouter(adminEmail, checker)
	sess := operator()

	g := rt.Mount(ctx, SurfaceAdmin, sess, bus, nil)
	assert.False(t, g.Decision().Allowed)

	bus.Publish(SessionEvent{UserID: sess.UserID, Email: adminEmail})
	require.Eventually(t, func() bool { return g.Decision().Allowed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateAdmin, g.Decision().State)
	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestGuard_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus()
	g := NewRouter(adminEmail, nil).Mount(ctx, SurfaceOperator, nil, bus, nil)

	assert.Equal(t, SurfaceLogin, g.Decision().Redirect)
	cancel()

	select {
	case <-g.Done():
	case <-time.After(time.Second):
		t.Fatal("guard did not stop")
	}
	assert.Equal(t, 0, bus.Publish(SessionEvent{UserID: uuid.New()}))
}

func TestBus_DropsForLaggingSubscriber(t *testing.T) {
	bus := NewBus()
	events, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer; i++ {
		assert.Equal(t, 1, bus.Publish(SessionEvent{UserID: uuid.New()}))
	}
	assert.Equal(t, 0, bus.Publish(SessionEvent{UserID: uuid.New()}))
	assert.Len(t, events, subscriberBuffer)

	cancel()
	assert.NotPanics(t, cancel)
}
