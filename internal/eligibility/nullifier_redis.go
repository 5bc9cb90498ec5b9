package eligibility

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"rentgate/pkg/platform/sentinel"
)

// RedisNullifierStore backs the used set with Redis. SETNX is the atomic
// insert-if-absent the replay invariant needs when several gate instances
// share one set.
type RedisNullifierStore struct {
	client *redis.Client
}

func NewRedisNullifierStore(client *redis.Client) *RedisNullifierStore {
	return &RedisNullifierStore{client: client}
}

func (s *RedisNullifierStore) Consume(ctx context.Context, dom NullifierDomain, value common.Hash) error {
	key := fmt.Sprintf("rentgate:nullifier:%s:%s", dom, value.Hex())
	// Nullifiers never expire; replay protection is permanent.
	set, err := s.client.SetNX(ctx, key, 1, 0).Result()
	if err != nil {
		return fmt.Errorf("consume nullifier: %w", err)
	}
	if !set {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}
