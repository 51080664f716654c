package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	flowPrefix = "flow:"
	flowTTL    = 24 * time.Hour
)

// FlowGuard manages the per-user fencing token. The token is regenerated on
// reset; any outbound send computed under a superseded token must be dropped
// before transmission.
type FlowGuard struct {
	client *redis.Client
}

// NewFlowGuard returns a flow token guard backed by the given Redis client.
func NewFlowGuard(client *redis.Client) *FlowGuard {
	return &FlowGuard{client: client}
}

// Ensure returns the current token for a user, creating one if absent.
func (g *FlowGuard) Ensure(ctx context.Context, userID string) (string, error) {
	token, err := g.client.Get(ctx, flowPrefix+userID).Result()
	if err == nil {
		return token, nil
	}
	if err != redis.Nil {
		return "", fmt.Errorf("failed to read flow token: %w", err)
	}
	return g.Reset(ctx, userID)
}

// Reset generates and stores a fresh token, invalidating all outstanding
// sends computed under the old one.
func (g *FlowGuard) Reset(ctx context.Context, userID string) (string, error) {
	token := uuid.New().String()
	if err := g.client.Set(ctx, flowPrefix+userID, token, flowTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store flow token: %w", err)
	}
	return token, nil
}

// Current re-reads the token immediately before a send. An empty string means
// no token exists (the send proceeds only if it was computed under none).
func (g *FlowGuard) Current(ctx context.Context, userID string) (string, error) {
	token, err := g.client.Get(ctx, flowPrefix+userID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read flow token: %w", err)
	}
	return token, nil
}
