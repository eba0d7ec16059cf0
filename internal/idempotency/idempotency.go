package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/veloztours/booking-engine/internal/adapters/redis"
)

// Idempotency replays the first response for a repeated Idempotency-Key, so
// clients can safely retry reservation-creating POSTs.
type Idempotency struct {
	store *redisadapter.Store
	ttl   time.Duration
}

func New(store *redisadapter.Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	cached, err := i.store.GetResponse(ctx, key)
	if err != nil || cached == nil {
		return nil, err
	}
	return &Response{Status: cached.Status, Result: cached.Body}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.store.SetResponse(ctx, key, redisadapter.CachedResponse{
		Status: resp.Status,
		Body:   resp.Result,
	}, i.ttl)
}
