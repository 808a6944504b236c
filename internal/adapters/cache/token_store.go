package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	redisclient "github.com/zatekoja/pgfinder/internal/infrastructure/clients/redis"
	"github.com/zatekoja/pgfinder/pkg/textutil"
)

const refreshKeyPrefix = "auth:refresh:"

// RedisTokenStore keeps refresh token hashes per user with a TTL
type RedisTokenStore struct {
	client redis.UniversalClient
}

// NewRedisTokenStore creates a refresh token store backed by Redis
func NewRedisTokenStore(client *redisclient.Client) providers.TokenStore {
	return &RedisTokenStore{client: client.Client()}
}

func refreshKey(userID, token string) string {
	return refreshKeyPrefix + userID + ":" + textutil.SHA256Hex(token)
}

// Save stores the token hash until ttl elapses
func (s *RedisTokenStore) Save(ctx context.Context, userID, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshKey(userID, token), time.Now().UTC().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Exists reports whether the token is still stored for userID
func (s *RedisTokenStore) Exists(ctx context.Context, userID, token string) (bool, error) {
	n, err := s.client.Exists(ctx, refreshKey(userID, token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	return n > 0, nil
}

// Remove revokes one token and reports whether anything was removed
func (s *RedisTokenStore) Remove(ctx context.Context, userID, token string) (bool, error) {
	n, err := s.client.Del(ctx, refreshKey(userID, token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return n > 0, nil
}

// RemoveAll revokes every token of userID
func (s *RedisTokenStore) RemoveAll(ctx context.Context, userID string) error {
	iter := s.client.Scan(ctx, 0, refreshKeyPrefix+userID+":*", scanBatchSize).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan refresh tokens: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}
