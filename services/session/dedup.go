package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	dedupPrefix = "dedup:"
	dedupTTL    = 24 * time.Hour
)

// Dedup is the per-message-id idempotency gate. A repeated webhook delivery
// of the same message id is processed at most once.
type Dedup struct {
	client *redis.Client
}

// NewDedup returns a dedup guard backed by the given Redis client.
func NewDedup(client *redis.Client) *Dedup {
	return &Dedup{client: client}
}

// MarkProcessed atomically records the message id and reports whether this is
// the first time it has been seen. An absent message id disables dedup: every
// such message counts as first-seen.
func (d *Dedup) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return true, nil
	}
	first, err := d.client.SetNX(ctx, dedupPrefix+messageID, 1, dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record message id: %w", err)
	}
	return first, nil
}
