package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"lendmark/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultTTL  = 600 * time.Second
	scanBatch   = 200
	pingTimeout = 2 * time.Second
)

var ErrUnavailable = errors.New("redis unavailable")

// Redis is the shared cache and session store. When the server cannot be
// reached at startup every operation becomes a miss, so callers degrade to
// going straight to Postgres.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	warned atomic.Bool
}

func NewRedis(cfg config.RedisConfig, logger zerolog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", client.Options().Addr).Msg("redis unavailable, cache disabled")
		_ = client.Close()
		client = nil
	}
	return newRedis(client, cfg.TTL, logger)
}

// NewWithClient wraps an already connected client.
func NewWithClient(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Redis {
	return newRedis(client, ttl, logger)
}

// NewDisabled returns a cache that never hits.
func NewDisabled() *Redis {
	return newRedis(nil, 0, zerolog.Nop())
}

func newRedis(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (r *Redis) Enabled() bool {
	return r != nil && r.client != nil
}

// observe logs the first command failure only; a flapping Redis would
// otherwise flood the log on every request.
func (r *Redis) observe(err error) error {
	if err != nil && !errors.Is(err, redis.Nil) && r.warned.CompareAndSwap(false, true) {
		r.logger.Warn().Err(err).Msg("redis command failed, bypassing cache")
	}
	return err
}

func (r *Redis) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return ErrUnavailable
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if !r.Enabled() {
		return false, nil
	}
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) || (err == nil && len(b) == 0) {
		return false, nil
	}
	if err != nil {
		return false, r.observe(err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.observe(r.client.Set(ctx, key, b, r.ttlOr(ttl)).Err())
}

// SetString stores a plain value. Unlike the JSON helpers it reports
// ErrUnavailable, since session bookkeeping must know it did not happen.
func (r *Redis) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if !r.Enabled() {
		return ErrUnavailable
	}
	return r.observe(r.client.Set(ctx, key, value, r.ttlOr(ttl)).Err())
}

// GetDel atomically reads and removes key.
func (r *Redis) GetDel(ctx context.Context, key string) (string, bool, error) {
	if !r.Enabled() {
		return "", false, ErrUnavailable
	}
	v, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, r.observe(err)
	}
	return v, true, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if !r.Enabled() || len(keys) == 0 {
		return nil
	}
	return r.observe(r.client.Del(ctx, keys...).Err())
}

// DeleteByPattern unlinks matching keys in SCAN-sized batches.
func (r *Redis) DeleteByPattern(ctx context.Context, pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if !r.Enabled() || pattern == "" {
		return nil
	}

	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := r.client.Unlink(ctx, batch...).Err()
		if err != nil {
			r.logger.Error().Err(err).Str("pattern", pattern).Int("keys", len(batch)).Msg("redis unlink failed")
		}
		batch = batch[:0]
		return err
	}

	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return r.observe(err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return r.observe(err)
	}
	return r.observe(flush())
}

// Counter reads an integer maintained by Incr. A missing key, or a disabled
// cache, reads as 0.
func (r *Redis) Counter(ctx context.Context, key string) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}
	n, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, r.observe(err)
	}
	return n, nil
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, r.observe(err)
	}
	return n, nil
}

func (r *Redis) ttlOr(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return r.ttl
}
