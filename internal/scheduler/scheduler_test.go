package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
	"github.com/MrJamesThe3rd/consignado/internal/scheduler"
)

type countingDispatcher struct {
	calls atomic.Int32
	err   error
}

func (d *countingDispatcher) DispatchPending(ctx context.Context, _ reconciliation.DispatchFilter) (reconciliation.DispatchResult, error) {
	d.calls.Add(1)

	if _, ok := ctx.Deadline(); !ok {
		return reconciliation.DispatchResult{}, errors.New("dispatch without deadline")
	}

	return reconciliation.DispatchResult{DispatchedCount: 2}, d.err
}

var logger = slog.New(slog.DiscardHandler)

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := scheduler.New(&countingDispatcher{}, "not a cron", time.Second, logger)
	assert.Error(t, s.Start())
}

func TestScheduler_RunsOnTick(t *testing.T) {
	d := &countingDispatcher{}
	s := scheduler.New(d, "@every 1s", time.Second, logger)

	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return d.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_DispatchPending_ToleratesErrors(t *testing.T) {
	d := &countingDispatcher{err: errors.New("broker down")}
	s := scheduler.New(d, "@every 1m", time.Second, logger)

	s.DispatchPending()
	s.DispatchPending()

	assert.Equal(t, int32(2), d.calls.Load())
}
