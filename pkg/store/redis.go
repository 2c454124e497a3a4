package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

// RedisConfig configures the Redis backend
type RedisConfig struct {
	URL      string        // redis://[:password@]host:port/db
	Prefix   string        // Key prefix (default "atrdoc")
	DraftTTL time.Duration // Draft expiry (0 = keep)
}

// Redis stores drafts and confirmed results as JSON strings in Redis
type Redis struct {
	client   *redis.Client
	prefix   string
	draftTTL time.Duration
}

// OpenRedis connects to the server at cfg.URL and checks that it answers
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis URL is required")
	}
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedis(client, cfg), nil
}

// NewRedis wraps an existing client
func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "atrdoc"
	}
	return &Redis{client: client, prefix: prefix, draftTTL: cfg.DraftTTL}
}

func (r *Redis) key(kind string, key Key) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, kind, key)
}

func (r *Redis) SaveDraft(ctx context.Context, key Key, segments []lineseg.LineSegment) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := r.client.Set(ctx, r.key("draft", key), data, r.draftTTL).Err(); err != nil {
		return fmt.Errorf("save draft %s: %w", key, err)
	}
	return nil
}

func (r *Redis) LoadDraft(ctx context.Context, key Key) ([]lineseg.LineSegment, error) {
	data, err := r.get(ctx, r.key("draft", key))
	if err != nil {
		return nil, fmt.Errorf("draft %s: %w", key, err)
	}
	var segments []lineseg.LineSegment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", key, err)
	}
	return segments, nil
}

func (r *Redis) DeleteDraft(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, r.key("draft", key)).Err(); err != nil {
		return fmt.Errorf("delete draft %s: %w", key, err)
	}
	return nil
}

func (r *Redis) SaveConfirmed(ctx context.Context, key Key, confirmed atr.Confirmed) error {
	data, err := json.Marshal(confirmed)
	if err != nil {
		return fmt.Errorf("encode confirmed result: %w", err)
	}
	if err := r.client.Set(ctx, r.key("confirmed", key), data, 0).Err(); err != nil {
		return fmt.Errorf("save confirmed result %s: %w", key, err)
	}
	return nil
}

func (r *Redis) LoadConfirmed(ctx context.Context, key Key) (atr.Confirmed, error) {
	data, err := r.get(ctx, r.key("confirmed", key))
	if err != nil {
		return atr.Confirmed{}, fmt.Errorf("confirmed result %s: %w", key, err)
	}
	var c atr.Confirmed
	if err := json.Unmarshal(data, &c); err != nil {
		return atr.Confirmed{}, fmt.Errorf("decode confirmed result %s: %w", key, err)
	}
	return c, nil
}

// Close closes the client
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}
