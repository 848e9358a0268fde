package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/types"
)

// RedisClient is the subset of *redis.Client the backend uses.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient opens a client and verifies the connection.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// Redis is a durable Notification Backend. The schedule is a sorted set of
// handles scored by trigger unix time, and the payloads live in a hash keyed
// by handle. A host-side poller calls Due to pop what has fired.
type Redis struct {
	client RedisClient
	prefix string
	clock  types.Clock
	logger *slog.Logger
}

// NewRedis creates a Redis backend whose keys start with prefix.
func NewRedis(client RedisClient, prefix string, clock types.Clock, logger *slog.Logger) *Redis {
	if prefix == "" {
		prefix = "vigil"
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, prefix: prefix, clock: clock, logger: logger}
}

func (r *Redis) scheduleKey() string { return r.prefix + ":schedule" }
func (r *Redis) payloadKey() string  { return r.prefix + ":payloads" }

// Schedule stores content and indexes it by trigger time.
func (r *Redis) Schedule(ctx context.Context, content types.NotificationContent, trigger time.Time) (string, error) {
	if err := validateRequest(content, trigger, r.clock.Now()); err != nil {
		return "", err
	}

	handle := newHandle()
	payload, err := json.Marshal(Delivery{Handle: handle, TriggerAt: trigger, Content: content})
	if err != nil {
		return "", rejected("encode payload", err, trigger)
	}

	if err := r.client.HSet(ctx, r.payloadKey(), handle, payload).Err(); err != nil {
		return "", rejected("store payload", err, trigger)
	}
	if err := r.client.ZAdd(ctx, r.scheduleKey(), redis.Z{Score: float64(trigger.Unix()), Member: handle}).Err(); err != nil {
		// Leave no payload without a schedule entry.
		_ = r.client.HDel(ctx, r.payloadKey(), handle).Err()
		return "", rejected("index schedule", err, trigger)
	}
	return handle, nil
}

// Cancel removes handle from the schedule. Unknown handles cancel successfully.
func (r *Redis) Cancel(ctx context.Context, handle string) error {
	if err := r.client.ZRem(ctx, r.scheduleKey(), handle).Err(); err != nil {
		return fmt.Errorf("cancel %s: %w", handle, err)
	}
	if err := r.client.HDel(ctx, r.payloadKey(), handle).Err(); err != nil {
		return fmt.Errorf("cancel %s payload: %w", handle, err)
	}
	return nil
}

// CancelAll drops the whole schedule.
func (r *Redis) CancelAll(ctx context.Context) error {
	if err := r.client.Del(ctx, r.scheduleKey(), r.payloadKey()).Err(); err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	return nil
}

// Outstanding returns every scheduled handle in trigger order.
func (r *Redis) Outstanding(ctx context.Context) ([]string, error) {
	handles, err := r.client.ZRange(ctx, r.scheduleKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list outstanding: %w", err)
	}
	return handles, nil
}

// Due pops every notification whose trigger is at or before now. An entry is
// returned only to the caller whose ZREM removed it, so concurrent pollers
// never deliver the same notification twice.
func (r *Redis) Due(ctx context.Context, now time.Time) ([]Delivery, error) {
	handles, err := r.client.ZRangeByScore(ctx, r.scheduleKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("query due: %w", err)
	}

	var out []Delivery
	for _, h := range handles {
		removed, err := r.client.ZRem(ctx, r.scheduleKey(), h).Result()
		if err != nil {
			return out, fmt.Errorf("claim %s: %w", h, err)
		}
		if removed == 0 {
			continue
		}
		raw, err := r.client.HGet(ctx, r.payloadKey(), h).Result()
		_ = r.client.HDel(ctx, r.payloadKey(), h).Err()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				r.logger.WarnContext(ctx, "dropping due notification without payload", "handle", h, "error", err)
			}
			continue
		}
		var d Delivery
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			r.logger.WarnContext(ctx, "dropping undecodable notification", "handle", h, "error", err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Poll calls Due every interval and hands deliveries to sink until ctx ends.
func (r *Redis) Poll(ctx context.Context, interval time.Duration, sink Sink) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := r.Due(ctx, r.clock.Now())
			if err != nil {
				r.logger.ErrorContext(ctx, "poll due notifications", "error", err)
			}
			for _, d := range due {
				sink.Deliver(ctx, d)
			}
		}
	}
}
