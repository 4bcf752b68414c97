package dialer

import (
	"context"
	"time"

	"autodialer/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// BatchGuard caps how many passes of one kind (dispatch or reconcile) may run
// at once across process replicas, backed by the shared redis slot counter.
// The TTL releases slots leaked by a crashed process.
type BatchGuard struct {
	rdb   *redis.Client
	key   string
	limit int
	ttl   time.Duration
}

func NewBatchGuard(rdb *redis.Client, key string, limit int, ttl time.Duration) *BatchGuard {
	if limit <= 0 {
		limit = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BatchGuard{rdb: rdb, key: key, limit: limit, ttl: ttl}
}

// Acquire claims a slot. ok is false when the cap is reached; release must be
// called when ok is true.
func (g *BatchGuard) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	ok, err = utils.AcquireBatchSlot(ctx, g.rdb, g.key, g.limit, g.ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return func() {
		// Release must succeed even after the pass context is cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = utils.ReleaseBatchSlot(relCtx, g.rdb, g.key)
	}, true, nil
}
