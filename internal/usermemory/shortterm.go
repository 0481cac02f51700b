package usermemory

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	shortTermMax = 10
	shortTermTTL = 30 * time.Minute
)

// ShortTermStore keeps the last few conversation lines per user in a
// Redis list, for classifier context hints.
type ShortTermStore struct {
	client *redis.Client
}

func NewShortTermStore(client *redis.Client) *ShortTermStore {
	return &ShortTermStore{client: client}
}

func convKey(userID string) string {
	return fmt.Sprintf("conv:%s", userID)
}

// Append adds one line and trims the list to the retention window.
func (s *ShortTermStore) Append(ctx context.Context, userID, line string) error {
	key := convKey(userID)

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, line)
	pipe.LTrim(ctx, key, int64(-shortTermMax), -1)
	pipe.Expire(ctx, key, shortTermTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// Recent returns the last `limit` lines, oldest first.
func (s *ShortTermStore) Recent(ctx context.Context, userID string, limit int) ([]string, error) {
	vals, err := s.client.LRange(ctx, convKey(userID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", convKey(userID), err)
	}
	return vals, nil
}

// Clear deletes the user's conversation window.
func (s *ShortTermStore) Clear(ctx context.Context, userID string) error {
	return s.client.Del(ctx, convKey(userID)).Err()
}
