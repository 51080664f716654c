// Package session owns the durable per-user conversation state and the two
// guards that serialize event processing across instances: the message dedup
// gate and the flow token fence. Everything lives on a shared, atomic,
// TTL-capable Redis so multiple server instances see the same state.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"courtside/models"
)

const (
	sessionPrefix = "session:"
	sessionTTL    = 30 * time.Minute
)

// Store persists sessions as JSON blobs with an idle TTL.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStore returns a session store backed by the given Redis client.
func NewStore(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Get loads the session for a user. A missing or expired session yields
// (nil, nil). Sessions stored under an older schema are migrated on load.
func (s *Store) Get(ctx context.Context, userID string) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		s.logger.Warn("discarding unparseable session", zap.String("user", userID), zap.Error(err))
		return nil, nil
	}
	sess.Migrate()
	return &sess, nil
}

// Save persists the session and refreshes its idle TTL.
func (s *Store) Save(ctx context.Context, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionPrefix+sess.UserID, data, sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sessionPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
