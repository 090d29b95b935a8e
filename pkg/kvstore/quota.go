package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// The persistent store is a quota-bound service: it allows a limited number
// of write operations per day. The guard tracks consumption in a shared
// Redis counter so every process gates against the same budget, and skips
// persistent writes once the budget is gone. Skipping is safe because the
// cache is an optimization over a recomputable result.

// Default write budget per quota window.
const DefaultWriteQuotaLimit = 100_000

// quotaWindow is the rolling consumption window.
const quotaWindow = 24 * time.Hour

// warningFraction of the budget consumed triggers warn-level logging.
const warningFraction = 0.8

// QuotaState is a point-in-time snapshot of write budget consumption.
type QuotaState struct {
	// Used is the number of writes recorded in the current window.
	Used int64 `json:"used"`

	// Limit is the configured write budget.
	Limit int64 `json:"limit"`
}

// Remaining returns the writes left in the window, never negative.
func (s QuotaState) Remaining() int64 {
	remaining := s.Limit - s.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exhausted returns true when the budget is fully consumed.
func (s QuotaState) Exhausted() bool {
	return s.Used >= s.Limit
}

// NearLimit returns true when consumption has crossed the warning threshold
// but the budget is not yet exhausted.
func (s QuotaState) NearLimit() bool {
	return !s.Exhausted() && float64(s.Used) >= float64(s.Limit)*warningFraction
}

// WriteQuota gates persistent writes against a Redis-shared daily budget.
type WriteQuota struct {
	redis  *redis.Client
	key    string
	limit  int64
	logger zerolog.Logger
}

// NewWriteQuota creates a guard. prefix scopes the shared counter key; limit
// defaults to DefaultWriteQuotaLimit.
func NewWriteQuota(redisClient *redis.Client, prefix string, limit int64, logger zerolog.Logger) *WriteQuota {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "transform"
	}
	if limit <= 0 {
		limit = DefaultWriteQuotaLimit
	}
	return &WriteQuota{
		redis:  redisClient,
		key:    prefix + ":quota:writes_used",
		limit:  limit,
		logger: logger,
	}
}

// State reads the current consumption counter. A missing counter means an
// untouched window.
func (q *WriteQuota) State(ctx context.Context) (QuotaState, error) {
	used, err := q.redis.Get(ctx, q.key).Int64()
	if err != nil && err != redis.Nil {
		return QuotaState{}, fmt.Errorf("get quota counter: %w", err)
	}
	return QuotaState{Used: used, Limit: q.limit}, nil
}

// Allow reports whether a persistent write may proceed. An exhausted budget
// blocks the write; a read error fails open, since losing a cache write is
// cheaper than losing the cache entirely.
func (q *WriteQuota) Allow(ctx context.Context) bool {
	state, err := q.State(ctx)
	if err != nil {
		q.logger.Warn().Err(err).Msg("Write quota check failed - allowing write")
		return true
	}

	kvWriteQuotaRemaining.Set(float64(state.Remaining()))

	if state.Exhausted() {
		q.logger.Error().
			Int64("used", state.Used).
			Int64("limit", state.Limit).
			Msg("Persistent write quota exhausted - skipping cache writes")
		kvWriteQuotaBlocks.Inc()
		return false
	}

	if state.NearLimit() {
		q.logger.Warn().
			Int64("used", state.Used).
			Int64("remaining", state.Remaining()).
			Msg("Persistent write quota near limit")
	}

	return true
}

// Record counts one consumed write. The counter expires with the window; the
// expiry is only set when the counter is created so the window does not
// slide on every write.
func (q *WriteQuota) Record(ctx context.Context) error {
	pipe := q.redis.TxPipeline()
	incr := pipe.Incr(ctx, q.key)
	pipe.ExpireNX(ctx, q.key, quotaWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record quota write: %w", err)
	}

	kvWriteQuotaRemaining.Set(float64(QuotaState{Used: incr.Val(), Limit: q.limit}.Remaining()))
	return nil
}
