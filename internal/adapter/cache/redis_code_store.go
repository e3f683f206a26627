package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vaihtovirtahepo/faustjs/internal/domain"
	"github.com/vaihtovirtahepo/faustjs/internal/repository"
)

const codeKeyPrefix = "authcode:"

// RedisCodeStore implements repository.CodeStore backed by Redis. Expiry is
// delegated to key TTLs and consumption uses GETDEL, which is atomic on the
// server, so a code can be redeemed at most once.
type RedisCodeStore struct {
	client redis.UniversalClient
}

var _ repository.CodeStore = (*RedisCodeStore)(nil)

// NewRedisCodeStore constructs a Redis-backed one-time code store.
func NewRedisCodeStore(client redis.UniversalClient) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

// SaveCode stores the code with a TTL derived from its expiration.
func (s *RedisCodeStore) SaveCode(ctx context.Context, code domain.AuthorizationCode) error {
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("authorization code already expired")
	}
	key := codeKeyPrefix + code.Code
	if err := s.client.Set(ctx, key, strconv.FormatInt(code.UserID, 10), ttl).Err(); err != nil {
		return fmt.Errorf("persist authorization code: %w", err)
	}
	return nil
}

// ConsumeCode removes the code and returns the bound user id.
func (s *RedisCodeStore) ConsumeCode(ctx context.Context, code string) (int64, error) {
	value, err := s.client.GetDel(ctx, codeKeyPrefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, repository.ErrCodeNotFound
		}
		return 0, fmt.Errorf("consume authorization code: %w", err)
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode authorization code payload: %w", err)
	}
	return userID, nil
}
