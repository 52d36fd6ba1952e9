package queue_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/consignado/internal/queue"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := queue.DefaultRetryPolicy()

	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, time.Duration(0), p.Delay(1))
	assert.Equal(t, 5*time.Second, p.Delay(2))
	assert.Equal(t, 10*time.Second, p.Delay(3))
	assert.Equal(t, 20*time.Second, p.Delay(4))
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := queue.DefaultRetryPolicy()

	assert.False(t, p.Exhausted(1))
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))

	assert.True(t, queue.RetryPolicy{}.Exhausted(1))
}

func TestPermanent(t *testing.T) {
	base := errors.New("gone")

	err := fmt.Errorf("handling job: %w", queue.Permanent(base))

	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, queue.IsPermanent(base))
	assert.NoError(t, queue.Permanent(nil))
}
