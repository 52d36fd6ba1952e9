// Package rabbitmq implements the work queue on a RabbitMQ broker.
//
// Each topic owns a durable queue bound to a direct exchange and a companion
// "<topic>.retry" queue. Failed attempts are parked in the retry queue with a
// per-message expiration equal to the backoff delay; the broker dead-letters
// them back to the topic once the delay elapses.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MrJamesThe3rd/consignado/internal/queue"
)

const (
	headerAttempt     = "x-attempt"
	headerMaxAttempts = "x-max-attempts"
	headerBackoffMS   = "x-backoff-ms"
)

var errNacked = errors.New("broker rejected publish")

type Config struct {
	URL      string
	Exchange string
	// Prefetch is both the broker prefetch count and the number of worker slots per topic.
	Prefetch int
}

type Queue struct {
	conn     *amqp.Connection
	exchange string
	prefetch int
	logger   *slog.Logger

	pubMu sync.Mutex
	pub   *amqp.Channel

	declared sync.Map

	mu        sync.Mutex
	consumers []*amqp.Channel

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")

	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}

	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %q", parsed.Scheme)
	}

	return clean, nil
}

func New(cfg Config, logger *slog.Logger) (*Queue, error) {
	cleanURL, err := sanitizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	// Bounded dial timeout so startup does not hang on an unreachable broker.
	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}

	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := pub.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling publisher confirms: %w", err)
	}

	if err := pub.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		conn:     conn,
		exchange: cfg.Exchange,
		prefetch: max(cfg.Prefetch, 1),
		logger:   logger,
		pub:      pub,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func retryQueueName(topic string) string {
	return topic + ".retry"
}

// declare creates the topic queue and its retry queue once per process.
func (q *Queue) declare(ch *amqp.Channel, topic string) error {
	if _, ok := q.declared.Load(topic); ok {
		return nil
	}

	if _, err := ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring queue %s: %w", topic, err)
	}

	if err := ch.QueueBind(topic, topic, q.exchange, false, nil); err != nil {
		return fmt.Errorf("binding queue %s: %w", topic, err)
	}

	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchange,
		"x-dead-letter-routing-key": topic,
	}
	if _, err := ch.QueueDeclare(retryQueueName(topic), true, false, false, false, retryArgs); err != nil {
		return fmt.Errorf("declaring retry queue %s: %w", topic, err)
	}

	q.declared.Store(topic, struct{}{})

	return nil
}

// Enqueue returns only after the broker confirmed the job.
func (q *Queue) Enqueue(ctx context.Context, topic string, body []byte, policy queue.RetryPolicy) error {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	if err := q.declare(q.pub, topic); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      headers(1, policy),
		Body:         body,
	}

	return q.publish(ctx, q.exchange, topic, msg)
}

// publish must be called with pubMu held.
func (q *Queue) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	dc, err := q.pub.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", key, err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("awaiting confirm for %s: %w", key, err)
	}

	if !acked {
		return fmt.Errorf("publishing to %s: %w", key, errNacked)
	}

	return nil
}

func headers(attempt int, policy queue.RetryPolicy) amqp.Table {
	return amqp.Table{
		headerAttempt:     int64(attempt),
		headerMaxAttempts: int64(policy.Attempts),
		headerBackoffMS:   policy.Backoff.Milliseconds(),
	}
}

func headerInt(h amqp.Table, key string, fallback int64) int64 {
	switch v := h[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	}

	return fallback
}

func deliveryFromAMQP(topic string, d amqp.Delivery) queue.Delivery {
	def := queue.DefaultRetryPolicy()

	return queue.Delivery{
		Topic:   topic,
		Body:    d.Body,
		Attempt: int(headerInt(d.Headers, headerAttempt, 1)),
		Policy: queue.RetryPolicy{
			Attempts: int(headerInt(d.Headers, headerMaxAttempts, int64(def.Attempts))),
			Backoff:  time.Duration(headerInt(d.Headers, headerBackoffMS, def.Backoff.Milliseconds())) * time.Millisecond,
		},
	}
}

// Subscribe consumes a topic with Prefetch worker slots. The broker hands each
// unacknowledged message to a single consumer, so attempts never overlap.
func (q *Queue) Subscribe(topic string, handler queue.Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("opening consumer channel: %w", err)
	}

	if err := ch.Qos(q.prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("setting qos: %w", err)
	}

	if err := q.declare(ch, topic); err != nil {
		ch.Close()
		return err
	}

	msgs, err := ch.Consume(topic, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consuming %s: %w", topic, err)
	}

	q.mu.Lock()
	q.consumers = append(q.consumers, ch)
	q.mu.Unlock()

	for range q.prefetch {
		q.wg.Add(1)

		go func() {
			defer q.wg.Done()

			for m := range msgs {
				q.handle(topic, m, handler)
			}
		}()
	}

	return nil
}

func (q *Queue) handle(topic string, m amqp.Delivery, handler queue.Handler) {
	d := deliveryFromAMQP(topic, m)

	err := handler(context.WithoutCancel(q.ctx), d)
	if err == nil {
		q.ack(m)
		return
	}

	log := q.logger.With("topic", topic, "attempt", d.Attempt, "error", err)

	if queue.IsPermanent(err) {
		log.Warn("dropping job after permanent failure")
		q.ack(m)

		return
	}

	if d.Policy.Exhausted(d.Attempt) {
		log.Error("dropping job after exhausting retries")
		q.ack(m)

		return
	}

	next := d.Attempt + 1
	delay := d.Policy.Delay(next)

	if err := q.parkForRetry(topic, m.Body, next, d.Policy, delay); err != nil {
		log.Error("failed to schedule retry; requeueing", "retry_error", err)

		if nackErr := m.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", "nack_error", nackErr)
		}

		return
	}

	log.Info("retrying job", "delay", delay)
	q.ack(m)
}

func (q *Queue) parkForRetry(topic string, body []byte, attempt int, policy queue.RetryPolicy, delay time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      headers(attempt, policy),
		Expiration:   strconv.FormatInt(max(delay.Milliseconds(), 1), 10),
		Body:         body,
	}

	// The default exchange routes directly to the retry queue by name.
	return q.publish(ctx, "", retryQueueName(topic), msg)
}

func (q *Queue) ack(m amqp.Delivery) {
	if err := m.Ack(false); err != nil {
		q.logger.Error("failed to ack message", "error", err)
	}
}

// Close stops consuming, waits for running attempts to settle their messages
// and then closes the connection.
func (q *Queue) Close() error {
	q.mu.Lock()
	for _, ch := range q.consumers {
		ch.Close()
	}
	q.consumers = nil
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()

	q.pubMu.Lock()
	q.pub.Close()
	q.pubMu.Unlock()

	return q.conn.Close()
}
