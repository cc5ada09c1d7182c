package adapter

import (
	"context"
	"time"
)

// RateLimiter counts submissions per key inside a trailing window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
