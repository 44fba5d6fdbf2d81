package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	block uint64
	err   error
}

func (f *fakeSource) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block, f.err
}

func (f *fakeSource) set(block uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block, f.err = block, err
}

func TestWatcher_PublishesOnNewBlockOnly(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{block: 10}
	w := New(src, time.Second)

	var got []Invalidation
	w.Subscribe(func(inv Invalidation) { got = append(got, inv) })

	require.NoError(t, w.Poll(ctx))
	require.NoError(t, w.Poll(ctx))
	require.Len(t, got, 1, "unchanged block must not invalidate")

	src.set(11, nil)
	require.NoError(t, w.Poll(ctx))
	require.Len(t, got, 2)
	require.Equal(t, Invalidation{Trigger: TriggerBlock, Block: 11}, got[1])
	require.Equal(t, uint64(11), w.LastBlock())

	w.Refresh()
	require.Len(t, got, 3)
	require.Equal(t, Invalidation{Trigger: TriggerManual, Block: 11}, got[2])
}

func TestWatcher_Unsubscribe(t *testing.T) {
	w := New(&fakeSource{block: 1}, time.Second)

	var first, second int
	stopFirst := w.Subscribe(func(Invalidation) { first++ })
	w.Subscribe(func(Invalidation) { second++ })
	require.Equal(t, 2, w.Subscribers())

	w.Refresh()
	stopFirst()
	stopFirst()
	require.Equal(t, 1, w.Subscribers())

	w.Refresh()
	require.Equal(t, 1, first)
	require.Equal(t, 2, second)
}

func TestWatcher_SubscribeFromCallback(t *testing.T) {
	w := New(&fakeSource{block: 1}, time.Second)

	added := 0
	w.Subscribe(func(Invalidation) {
		if added == 0 {
			added++
			w.Subscribe(func(Invalidation) {})
		}
	})

	done := make(chan struct{})
	go func() {
		w.Refresh()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscribing inside a callback must not deadlock")
	}
	require.Equal(t, 2, w.Subscribers())
}

func TestWatcher_PollError(t *testing.T) {
	src := &fakeSource{err: errors.New("rpc down")}
	w := New(src, time.Second)

	calls := 0
	w.Subscribe(func(Invalidation) { calls++ })

	require.ErrorContains(t, w.Poll(context.Background()), "rpc down")
	require.Zero(t, calls)
}

func TestWatcher_StartStop(t *testing.T) {
	src := &fakeSource{block: 1}
	w := New(src, 20*time.Millisecond)

	var calls atomic.Int32
	w.Subscribe(func(Invalidation) { calls.Add(1) })
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	src.set(2, nil)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}
