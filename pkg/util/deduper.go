package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper short-circuits redelivered MQ messages. It is a fast path only;
// exactly-once guarantees come from the database constraints.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func dedupKey(handler, key string) string {
	return fmt.Sprintf("dedup:%s:%s", handler, key)
}

// AcquireOnce returns true if this is the first time handler sees key,
// false if it is a duplicate.
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, key string) bool {
	k := dedupKey(handler, key)

	ok, err := d.rdb.SetNX(ctx, k, 1, d.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("dedup_key", k),
		)
	}
	return ok
}

// Release forgets key so a failed attempt can be redelivered and processed.
func (d *Deduper) Release(ctx context.Context, handler string, key string) {
	if err := d.rdb.Del(ctx, dedupKey(handler, key)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
