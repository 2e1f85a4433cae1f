// Package presence mirrors online state into Redis with a TTL, so presence
// survives process restarts and is visible to sibling instances. A nil
// client degrades to a no-op for single-instance deployments.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store writes presence keys of the form presence:<userID>.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a Store. client may be nil.
func New(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

func key(userID int) string {
	return fmt.Sprintf("presence:%d", userID)
}

// SetOnline marks the user online until the TTL lapses without a refresh.
func (s *Store) SetOnline(ctx context.Context, userID int) error {
	if s.client == nil {
		return nil
	}
	return s.client.Set(ctx, key(userID), "1", s.ttl).Err()
}

// Refresh extends the user's presence TTL; called on websocket pongs.
func (s *Store) Refresh(ctx context.Context, userID int) error {
	if s.client == nil {
		return nil
	}
	return s.client.Expire(ctx, key(userID), s.ttl).Err()
}

// SetOffline drops the presence key immediately.
func (s *Store) SetOffline(ctx context.Context, userID int) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, key(userID)).Err()
}

// IsOnline reports whether the presence key currently exists.
func (s *Store) IsOnline(ctx context.Context, userID int) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	n, err := s.client.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
