package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store holds per-user carts in redis. The order core only ever clears a
// cart; the cart service owns the rest of the surface.
type Store struct {
	client *redis.Client
}

func NewStore(addr string) *Store {
	return &Store{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func key(userID uuid.UUID) string {
	return fmt.Sprintf("cart:%s", userID)
}

// Clear drops the user's cart after a confirmed payment. Clearing a missing
// cart is fine.
func (s *Store) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, key(userID)).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
