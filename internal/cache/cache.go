// Package cache stores short-lived snapshots of on-chain launch state.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key/value store. Get reports a miss with ok == false.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
