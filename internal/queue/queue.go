// Package queue defines the work queue used to decouple dispatch from processing.
//
// Delivery is at-least-once. A job is never handed to two consumers at the same
// time; a failed attempt is retried with exponential backoff until the retry
// policy is exhausted, unless the handler marks the failure as permanent.
package queue

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds the attempts made for one job.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy makes 3 attempts, waiting 5s and then 10s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 5 * time.Second}
}

// Delay returns how long to wait before the given attempt (1-based).
// The first attempt is immediate.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	return p.Backoff << (attempt - 2)
}

// Exhausted reports whether no attempt is left after the given one.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= max(p.Attempts, 1)
}

// Delivery is one attempt at processing a job.
type Delivery struct {
	Topic   string
	Body    []byte
	Attempt int
	Policy  RetryPolicy
}

// Handler processes a delivery. Returning nil completes the job, returning an
// error wrapped with Permanent drops it, any other error schedules a retry.
type Handler func(ctx context.Context, d Delivery) error

type Queue interface {
	Enqueue(ctx context.Context, topic string, body []byte, policy RetryPolicy) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as a failure that redelivery cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
