// Package cache keeps the reconciliation statistics snapshot in Redis so
// repeated dashboard polls do not aggregate the whole table every time.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
)

const defaultPrefix = "consignado:stats"

type Statistics struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewStatistics(client redis.UniversalClient, prefix string, ttl time.Duration) *Statistics {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = defaultPrefix
	}

	return &Statistics{
		client: client,
		key:    trimmed + ":snapshot",
		ttl:    ttl,
	}
}

// Get returns nil, nil on a miss.
func (s *Statistics) Get(ctx context.Context) (*reconciliation.Statistics, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}

	var stats reconciliation.Statistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.key, err)
	}

	return &stats, nil
}

func (s *Statistics) Set(ctx context.Context, stats *reconciliation.Statistics) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding statistics: %w", err)
	}

	if err := s.client.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", s.key, err)
	}

	return nil
}

// Invalidate drops the snapshot so the next read recomputes it.
func (s *Statistics) Invalidate(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}
