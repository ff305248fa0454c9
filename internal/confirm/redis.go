package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aanand-mishra/students-api/internal/config"
)

const keyPrefix = "confirm:"

// RedisStore keeps tokens in Redis with a TTL, so every API instance can
// redeem a token any other instance issued.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Put(ctx context.Context, token, subject string, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+token, subject, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Take uses GETDEL so a token can be redeemed once even under concurrent
// requests.
func (r *RedisStore) Take(ctx context.Context, token string) (string, error) {
	subject, err := r.client.GetDel(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("redis getdel: %w", err)
	}
	return subject, nil
}

// Connect builds a client from cfg and pings it.
func Connect(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("confirm.Connect: ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
