package token

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "access_token"

// RedisVault persists the access token under a single Redis key so a
// restarted process can resume its session without a fresh login.
type RedisVault struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisVault creates a vault keyed as "<prefix>:access_token".
// An empty prefix defaults to "authsession".
func NewRedisVault(client redis.UniversalClient, prefix string) *RedisVault {
	if prefix == "" {
		prefix = "authsession"
	}
	return &RedisVault{
		redis:  client,
		prefix: prefix,
	}
}

func (v *RedisVault) key() string {
	return v.prefix + ":" + defaultRedisKey
}

func (v *RedisVault) Load(ctx context.Context) (string, error) {
	tok, err := v.redis.Get(ctx, v.key()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Join(ErrVaultUnavailable, err)
	}
	return tok, nil
}

// Save stores tok with no TTL. Token lifetime is bounded by the embedded
// expiry claim, not by the vault.
func (v *RedisVault) Save(ctx context.Context, tok string) error {
	if err := v.redis.Set(ctx, v.key(), tok, 0).Err(); err != nil {
		return errors.Join(ErrVaultUnavailable, err)
	}
	return nil
}

func (v *RedisVault) Clear(ctx context.Context) error {
	if err := v.redis.Del(ctx, v.key()).Err(); err != nil {
		return errors.Join(ErrVaultUnavailable, err)
	}
	return nil
}
