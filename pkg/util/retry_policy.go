package util

import (
	"context"

	"go.uber.org/zap"
)

type counter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// RetryPolicy requeues retryable failures until a message has been
// delivered maxDeliveries times.
type RetryPolicy struct {
	counter       counter
	maxDeliveries int64
	logger        *zap.Logger
}

func NewRetryPolicy(c *RetryCounter, maxDeliveries int64, logger *zap.Logger) *RetryPolicy {
	return &RetryPolicy{counter: c, maxDeliveries: maxDeliveries, logger: logger}
}

func (p *RetryPolicy) ShouldRequeue(ctx context.Context, key string, err error) bool {
	retryable, errType := IsRetryableError(err)
	if !retryable {
		p.logger.Warn("Dropping non-retryable message",
			zap.String("key", key),
			zap.String("error_type", errType),
			zap.Error(err),
		)
		return false
	}

	count, cerr := p.counter.IncrementAndGet(ctx, key)
	if cerr != nil {
		p.logger.Warn("Retry counter unavailable, requeueing", zap.String("key", key), zap.Error(cerr))
		return true
	}
	if !ShouldRetry(count, p.maxDeliveries, retryable) {
		p.logger.Error("Message exceeded max deliveries",
			zap.String("key", key),
			zap.Int64("deliveries", count),
			zap.String("error_type", errType),
		)
		return false
	}
	return true
}

// Reset clears the delivery count once a message has been handled.
func (p *RetryPolicy) Reset(ctx context.Context, key string) {
	if err := p.counter.Reset(ctx, key); err != nil {
		p.logger.Warn("Failed to reset retry counter", zap.String("key", key), zap.Error(err))
	}
}
