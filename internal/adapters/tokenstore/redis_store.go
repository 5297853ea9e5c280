package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

const keyPrefix = "refresh:"

// RedisClient is the part of *redis.Client the store uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps one key per redeemable refresh credential, expiring with it.
type RedisStore struct {
	client RedisClient
	cb     *gobreaker.CircuitBreaker
}

var _ ports.RefreshTokenStore = (*RedisStore)(nil)

func NewRedisStore(client RedisClient, cb *gobreaker.CircuitBreaker) *RedisStore {
	return &RedisStore{client: client, cb: cb}
}

func (s *RedisStore) Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, keyPrefix+tokenID, userID, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis: save refresh credential: %w", err)
	}
	return nil
}

// Consume uses GETDEL so two concurrent exchanges of the same credential cannot both win.
func (s *RedisStore) Consume(ctx context.Context, tokenID string) (string, error) {
	var missing bool
	res, err := s.cb.Execute(func() (interface{}, error) {
		userID, err := s.client.GetDel(ctx, keyPrefix+tokenID).Result()
		if errors.Is(err, redis.Nil) {
			missing = true
			return "", nil
		}
		return userID, err
	})
	if err != nil {
		return "", fmt.Errorf("redis: consume refresh credential: %w", err)
	}
	if missing {
		return "", domain.ErrNotFound
	}
	return res.(string), nil
}

func (s *RedisStore) Revoke(ctx context.Context, tokenID string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, keyPrefix+tokenID).Err()
	})
	if err != nil {
		return fmt.Errorf("redis: revoke refresh credential: %w", err)
	}
	return nil
}
