package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

// MarkOnce sets the key if absent and reports whether this caller was first.
// Used to deduplicate replayed payment callbacks.
func MarkOnce(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}

// CacheOrderStatus stores the latest order status for cheap polling reads.
func CacheOrderStatus(ctx context.Context, rdb *redis.Client, orderID, status string) error {
	return rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), status, TTLStatusCache).Err()
}

// CachedOrderStatus returns the cached status, or "" on miss.
func CachedOrderStatus(ctx context.Context, rdb *redis.Client, orderID string) (string, error) {
	v, err := rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

// Store bundles the engine's Redis usage behind methods so callers can take
// it as an interface.
type Store struct {
	RDB *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{RDB: rdb}
}

// MarkPaymentOnce reports whether this payment verdict is the first of its
// kind for the order.
func (s *Store) MarkPaymentOnce(ctx context.Context, orderID string, success bool) (bool, error) {
	return MarkOnce(ctx, s.RDB, fmt.Sprintf(KeyPaymentCallback, orderID, success), TTLDedup)
}

func (s *Store) SetOrderStatus(ctx context.Context, orderID, status string) error {
	return CacheOrderStatus(ctx, s.RDB, orderID, status)
}

func (s *Store) OrderStatus(ctx context.Context, orderID string) (string, error) {
	return CachedOrderStatus(ctx, s.RDB, orderID)
}
