// Package store provides the key-value and publish/subscribe access the
// refresh cycle persists through.
package store

import (
	"context"
	"time"
)

// KV is the key-value surface used for snapshots, cooldown markers, and the
// last-known-good conversion rate.
type KV interface {
	// Get returns the value and whether the key existed.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value; a ttl of zero means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Publisher pushes change notifications onto the bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}
