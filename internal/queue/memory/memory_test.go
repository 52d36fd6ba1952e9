package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/consignado/internal/queue"
	"github.com/MrJamesThe3rd/consignado/internal/queue/memory"
)

var fastPolicy = queue.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

func TestQueue_DeliversEnqueuedJobs(t *testing.T) {
	q := memory.New(memory.WithConcurrency(2))
	defer q.Close()

	var (
		mu     sync.Mutex
		bodies []string
	)

	require.NoError(t, q.Enqueue(context.Background(), "jobs", []byte("a"), fastPolicy))
	require.NoError(t, q.Enqueue(context.Background(), "jobs", []byte("b"), fastPolicy))

	require.NoError(t, q.Subscribe("jobs", func(_ context.Context, d queue.Delivery) error {
		mu.Lock()
		defer mu.Unlock()

		bodies = append(bodies, string(d.Body))

		return nil
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(bodies) == 2
	}, time.Second, 5*time.Millisecond)

	assert.ElementsMatch(t, []string{"a", "b"}, bodies)
}

func TestQueue_RetriesTransientFailures(t *testing.T) {
	q := memory.New()
	defer q.Close()

	var attempts []int

	var mu sync.Mutex

	require.NoError(t, q.Subscribe("jobs", func(_ context.Context, d queue.Delivery) error {
		mu.Lock()
		defer mu.Unlock()

		attempts = append(attempts, d.Attempt)

		return errors.New("store unreachable")
	}))

	require.NoError(t, q.Enqueue(context.Background(), "jobs", []byte("x"), fastPolicy))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(attempts) == 3
	}, time.Second, 5*time.Millisecond)

	// No attempt beyond the policy.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestQueue_StopsOnPermanentFailure(t *testing.T) {
	q := memory.New()
	defer q.Close()

	var calls atomic.Int32

	require.NoError(t, q.Subscribe("jobs", func(_ context.Context, _ queue.Delivery) error {
		calls.Add(1)
		return queue.Permanent(errors.New("transaction not found"))
	}))

	require.NoError(t, q.Enqueue(context.Background(), "jobs", []byte("x"), fastPolicy))

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
}

func TestQueue_SingleFlightPerJob(t *testing.T) {
	q := memory.New(memory.WithConcurrency(4))
	defer q.Close()

	var (
		inFlight atomic.Int32
		overlap  atomic.Bool
		calls    atomic.Int32
	)

	require.NoError(t, q.Subscribe("jobs", func(_ context.Context, _ queue.Delivery) error {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		defer inFlight.Add(-1)

		calls.Add(1)
		time.Sleep(5 * time.Millisecond)

		return errors.New("retry me")
	}))

	require.NoError(t, q.Enqueue(context.Background(), "jobs", []byte("x"), queue.RetryPolicy{Attempts: 3}))

	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.False(t, overlap.Load())
}

func TestQueue_SubscribeTwice(t *testing.T) {
	q := memory.New()
	defer q.Close()

	noop := func(context.Context, queue.Delivery) error { return nil }

	require.NoError(t, q.Subscribe("jobs", noop))
	assert.Error(t, q.Subscribe("jobs", noop))
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	q := memory.New()
	require.NoError(t, q.Close())

	err := q.Enqueue(context.Background(), "jobs", []byte("x"), fastPolicy)
	assert.ErrorIs(t, err, memory.ErrClosed)
}

func TestQueue_CloseLetsRunningAttemptFinish(t *testing.T) {
	q := memory.New()

	started := make(chan struct{})
	ctxErr := make(chan error, 1)

	require.NoError(t, q.Subscribe("jobs", func(ctx context.Context, _ queue.Delivery) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		ctxErr <- ctx.Err()

		return nil
	}))

	require.NoError(t, q.Enqueue(context.Background(), "jobs", []byte("x"), fastPolicy))

	<-started
	require.NoError(t, q.Close())

	select {
	case err := <-ctxErr:
		assert.NoError(t, err)
	default:
		t.Fatal("Close returned before the running attempt finished")
	}
}

func TestQueue_EnqueueBlocksWhenBufferIsFull(t *testing.T) {
	q := memory.New(memory.WithBuffer(1))
	defer q.Close()

	require.NoError(t, q.Enqueue(context.Background(), "jobs", []byte("a"), fastPolicy))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, "jobs", []byte("b"), fastPolicy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
