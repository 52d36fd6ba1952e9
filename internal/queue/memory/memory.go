// Package memory is an in-process work queue. Jobs do not survive a restart.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/consignado/internal/queue"
)

var ErrClosed = errors.New("queue closed")

type Option func(*Queue)

// WithConcurrency sets the number of worker slots per subscribed topic.
func WithConcurrency(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

// WithBuffer sets how many jobs a topic holds before Enqueue blocks.
func WithBuffer(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.buffer = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

type Queue struct {
	concurrency int
	buffer      int
	logger      *slog.Logger

	mu     sync.Mutex
	topics map[string]*topic
	timers map[*time.Timer]struct{}
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type topic struct {
	jobs       chan queue.Delivery
	subscribed bool
}

func New(opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		concurrency: 1,
		buffer:      1024,
		logger:      slog.Default(),
		topics:      make(map[string]*topic),
		timers:      make(map[*time.Timer]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

func (q *Queue) topic(name string) (*topic, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}

	t, ok := q.topics[name]
	if !ok {
		t = &topic{jobs: make(chan queue.Delivery, q.buffer)}
		q.topics[name] = t
	}

	return t, nil
}

func (q *Queue) Enqueue(ctx context.Context, name string, body []byte, policy queue.RetryPolicy) error {
	t, err := q.topic(name)
	if err != nil {
		return err
	}

	return q.push(ctx, t, queue.Delivery{
		Topic:   name,
		Body:    body,
		Attempt: 1,
		Policy:  policy,
	})
}

func (q *Queue) push(ctx context.Context, t *topic, d queue.Delivery) error {
	select {
	case t.jobs <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return ErrClosed
	}
}

// Subscribe starts the worker slots for a topic. Each topic accepts one handler.
func (q *Queue) Subscribe(name string, handler queue.Handler) error {
	t, err := q.topic(name)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if t.subscribed {
		q.mu.Unlock()
		return errors.New("topic already has a handler: " + name)
	}

	t.subscribed = true
	q.mu.Unlock()

	for range q.concurrency {
		q.wg.Add(1)

		go func() {
			defer q.wg.Done()

			for {
				select {
				case <-q.ctx.Done():
					return
				case d := <-t.jobs:
					q.handle(t, d, handler)
				}
			}
		}()
	}

	return nil
}

func (q *Queue) handle(t *topic, d queue.Delivery, handler queue.Handler) {
	// Close stops the slots from taking new jobs but lets a running attempt
	// finish its writes.
	err := handler(context.WithoutCancel(q.ctx), d)
	if err == nil {
		return
	}

	log := q.logger.With("topic", d.Topic, "attempt", d.Attempt, "error", err)

	if queue.IsPermanent(err) {
		log.Warn("dropping job after permanent failure")
		return
	}

	if d.Policy.Exhausted(d.Attempt) {
		log.Error("dropping job after exhausting retries")
		return
	}

	next := d
	next.Attempt++
	delay := d.Policy.Delay(next.Attempt)

	log.Info("retrying job", "delay", delay)
	q.schedule(t, next, delay)
}

func (q *Queue) schedule(t *topic, d queue.Delivery, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	var timer *time.Timer

	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()

		if err := q.push(q.ctx, t, d); err != nil {
			q.logger.Warn("retry not delivered", "topic", d.Topic, "attempt", d.Attempt, "error", err)
		}
	})

	q.timers[timer] = struct{}{}
}

// Close stops pending retries and waits for running attempts to return.
// Jobs still buffered are lost.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}

	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}

	q.timers = nil
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()

	return nil
}
