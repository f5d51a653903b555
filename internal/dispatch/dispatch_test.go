package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d, err := New(nil, 4)
	require.NoError(t, err)
	return d
}

func TestInvoke_RoutesByLevel(t *testing.T) {
	d := newTestDispatcher(t)

	var got []Completion
	d.Register(7, func(c Completion) { got = append(got, c) })
	d.Register(8, func(c Completion) { t.Fatal("wrong level invoked") })

	assert.True(t, d.Invoke(Completion{LevelID: 7, RequestID: "abc"}))
	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].RequestID)
	assert.True(t, d.Registered(8))
}

func TestInvoke_OneShot(t *testing.T) {
	d := newTestDispatcher(t)

	calls := 0
	d.Register(1, func(Completion) { calls++ })

	assert.True(t, d.Invoke(Completion{LevelID: 1}))
	assert.False(t, d.Invoke(Completion{LevelID: 1}), "a stale completion must not fire again")
	assert.Equal(t, 1, calls)
	assert.False(t, d.Registered(1))
}

func TestInvoke_Unrouted(t *testing.T) {
	d := newTestDispatcher(t)
	assert.False(t, d.Invoke(Completion{LevelID: 99, Err: errors.New("boom")}))
}

func TestRegister_Replaces(t *testing.T) {
	d := newTestDispatcher(t)

	var which string
	d.Register(1, func(Completion) { which = "first" })
	d.Register(1, func(Completion) { which = "second" })
	d.Invoke(Completion{LevelID: 1})

	assert.Equal(t, "second", which)
}

func TestUnregister(t *testing.T) {
	d := newTestDispatcher(t)
	d.Register(1, func(Completion) { t.Fatal("unregistered callback invoked") })
	d.Unregister(1)
	assert.False(t, d.Invoke(Completion{LevelID: 1}))
}

func TestRun_DeliversQueued(t *testing.T) {
	d := newTestDispatcher(t)

	var delivered atomic.Int32
	done := make(chan struct{})
	for id := 1; id <= 3; id++ {
		d.Register(id, func(Completion) {
			if delivered.Add(1) == 3 {
				close(done)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	for id := 1; id <= 3; id++ {
		require.NoError(t, d.Notify(ctx, Completion{LevelID: id}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("completions not delivered")
	}

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestNotify_FullQueueRespectsContext(t *testing.T) {
	d, err := New(nil, 1)
	require.NoError(t, err)

	require.NoError(t, d.Notify(context.Background(), Completion{LevelID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Notify(ctx, Completion{LevelID: 2}), context.DeadlineExceeded)
}
