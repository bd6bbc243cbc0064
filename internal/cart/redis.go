package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/safar/go-cart-checkout/internal/models"
)

// RedisStore is the ephemeral variant: one JSON document per user with a
// session-lifetime TTL. Lines keep insertion order. Carts are per-user, so
// plain read-modify-write needs no cross-client coordination.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func (s *RedisStore) Get(ctx context.Context, userID int64) ([]models.CartLine, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var lines []models.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}

	return lines, nil
}

func (s *RedisStore) Upsert(ctx context.Context, line models.CartLine) error {
	lines, err := s.Get(ctx, line.UserID)
	if err != nil {
		return err
	}

	found := false
	for i := range lines {
		if lines[i].ProductID == line.ProductID {
			lines[i].Quantity = line.Quantity
			lines[i].ProductName = line.ProductName
			lines[i].UnitPrice = line.UnitPrice
			lines[i].Image = line.Image
			lines[i].AvailableQuantity = line.AvailableQuantity
			found = true
			break
		}
	}
	if !found {
		if line.CreatedAt.IsZero() {
			line.CreatedAt = time.Now()
		}
		lines = append(lines, line)
	}

	return s.put(ctx, line.UserID, lines)
}

func (s *RedisStore) Remove(ctx context.Context, userID, productID int64) error {
	lines, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	kept := lines[:0]
	for _, line := range lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}

	if len(kept) == 0 {
		return s.Clear(ctx, userID)
	}

	return s.put(ctx, userID, kept)
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *RedisStore) put(ctx context.Context, userID int64, lines []models.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set cart: %w", err)
	}

	return nil
}
