package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

const (
	keyPrefix = "gateway:requests:"

	// DefaultRecordTimeout bounds the counter write done on the request path.
	DefaultRecordTimeout = 250 * time.Millisecond
)

// Outcomes recorded per chain.
const (
	OutcomeResolved = "resolved"
	OutcomeNotFound = "not_found"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
)

// Recorder keeps per-chain request counters in Redis. A nil Recorder
// is valid and records nothing.
type Recorder struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRecorder(redisURL string) (*Recorder, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaintNotificationsConfig = &maintnotifications.Config{
		Mode: maintnotifications.ModeDisabled,
	}
	opts.ContextTimeoutEnabled = true

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRecorderWithClient(client), nil
}

// NewRecorderWithClient wraps an existing client. The client must have
// ContextTimeoutEnabled set for the record timeout to apply to reads.
func NewRecorderWithClient(client *redis.Client) *Recorder {
	return &Recorder{client: client, timeout: DefaultRecordTimeout}
}

func (r *Recorder) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// Record bumps the counter for route and outcome. chainID is zero for
// requests that never reached a chain.
func (r *Recorder) Record(ctx context.Context, route string, chainID uint64, outcome string) {
	if r == nil {
		return
	}
	field := outcome
	if chainID != 0 {
		field = strconv.FormatUint(chainID, 10) + ":" + outcome
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.HIncrBy(ctx, keyPrefix+route, field, 1).Err(); err != nil {
		slog.Warn("Failed to record request", "route", route, "field", field, "error", err)
	}
}

// Snapshot is route -> field -> count.
type Snapshot map[string]map[string]int64

func (r *Recorder) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := make(Snapshot)
	if r == nil {
		return snap, nil
	}

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		values, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		counts := make(map[string]int64, len(values))
		for field, v := range values {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				continue
			}
			counts[field] = n
		}
		snap[strings.TrimPrefix(key, keyPrefix)] = counts
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan counters: %w", err)
	}
	return snap, nil
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}
