package mqhandler

import "context"

// Deduper is satisfied by *util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, key string) bool
	Release(ctx context.Context, handler string, key string)
}

// noDedup lets every delivery through.
type noDedup struct{}

func (noDedup) AcquireOnce(context.Context, string, string) bool { return true }
func (noDedup) Release(context.Context, string, string)          {}
