package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the shared client for the rate limiter and the idempotency
// cache. Redis never holds booking state; capacity is derived from the
// relational rows.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Client() *redis.Client {
	return s.client
}

type CachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

func (s *Store) GetResponse(ctx context.Context, key string) (*CachedResponse, error) {
	val, err := s.client.Get(ctx, "idemp:"+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp CachedResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Store) SetResponse(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "idemp:"+key, data, ttl).Err()
}
