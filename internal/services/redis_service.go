package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisService backs presence tracking and request rate limiting. The relay
// treats every presence call as best-effort; the middleware treats limiter
// failures as hard errors because a broken limiter should not silently open
// the gates.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

func (r *RedisService) SetOnline(ctx context.Context, userID string) error {
	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, "online_users", userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":    "online",
		"last_seen": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 5*time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	slog.Debug("user set online", "userId", userID)
	return nil
}

func (r *RedisService) SetOffline(ctx context.Context, userID string) error {
	pipe := r.client.Pipeline()
	pipe.SRem(ctx, "online_users", userID)
	pipe.HSet(ctx, fmt.Sprintf("user:%s:status", userID), map[string]interface{}{
		"status":    "offline",
		"last_seen": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf("user:%s:status", userID), 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	slog.Debug("user set offline", "userId", userID)
	return nil
}

func (r *RedisService) IsOnline(ctx context.Context, userID string) (bool, error) {
	return r.client.SIsMember(ctx, "online_users", userID).Result()
}

func (r *RedisService) OnlineUsers(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, "online_users").Result()
}

// CheckRateLimit implements a fixed-window counter. The first hit in a
// window creates the key with an expiry; subsequent hits increment it.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
