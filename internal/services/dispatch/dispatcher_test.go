package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsTasks(t *testing.T) {
	d := NewDispatcher(2, 16, time.Second)
	defer d.Stop()

	done := make(chan struct{})
	require.True(t, d.Enqueue(func(ctx context.Context) {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestDispatcher_EnqueueAfter(t *testing.T) {
	d := NewDispatcher(1, 16, time.Second)
	defer d.Stop()

	done := make(chan time.Time, 1)
	start := time.Now()
	d.EnqueueAfter(20*time.Millisecond, func(ctx context.Context) {
		done <- time.Now()
	})

	select {
	case ranAt := <-done:
		assert.GreaterOrEqual(t, ranAt.Sub(start), 20*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("deferred task never ran")
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, 1, time.Second)
	defer d.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, d.Enqueue(func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	// Worker busy; one slot in the queue.
	require.True(t, d.Enqueue(func(ctx context.Context) {}))
	assert.False(t, d.Enqueue(func(ctx context.Context) {}), "a full queue drops rather than blocks")

	close(release)
}

func TestDispatcher_SurvivesPanics(t *testing.T) {
	d := NewDispatcher(1, 16, time.Second)
	defer d.Stop()

	require.True(t, d.Enqueue(func(ctx context.Context) {
		panic("boom")
	}))

	done := make(chan struct{})
	require.True(t, d.Enqueue(func(ctx context.Context) {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died with the panicking task")
	}
}

func TestDispatcher_StopDrainsQueue(t *testing.T) {
	d := NewDispatcher(1, 16, time.Second)

	var ran int32
	for i := 0; i < 5; i++ {
		require.True(t, d.Enqueue(func(ctx context.Context) {
			atomic.AddInt32(&ran, 1)
		}))
	}

	d.Stop()
	assert.Equal(t, int32(5), atomic.LoadInt32(&ran), "queued tasks finish before Stop returns")
	assert.False(t, d.Enqueue(func(ctx context.Context) {}), "a stopped dispatcher accepts nothing")
}

func TestDispatcher_EnqueueConcurrentWithStop(t *testing.T) {
	// Enqueue must never send on the closed queue, no matter how it
	// interleaves with Stop.
	for i := 0; i < 50; i++ {
		d := NewDispatcher(2, 64, time.Second)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					d.Enqueue(func(ctx context.Context) {})
				}
			}()
		}
		d.Stop()
		wg.Wait()

		assert.False(t, d.Enqueue(func(ctx context.Context) {}))
	}
}

func TestDispatcher_TaskTimeout(t *testing.T) {
	d := NewDispatcher(1, 16, 10*time.Millisecond)
	defer d.Stop()

	expired := make(chan error, 1)
	require.True(t, d.Enqueue(func(ctx context.Context) {
		<-ctx.Done()
		expired <- ctx.Err()
	}))

	select {
	case err := <-expired:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("task context never expired")
	}
}
