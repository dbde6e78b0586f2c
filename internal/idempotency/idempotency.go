package idempotency

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
)

var ErrInFlight = errors.New("a request with this idempotency key is still in progress")

type Store interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Idempotency struct {
	redis Store
	ttl   time.Duration
}

func NewIdempotency(redis Store, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl}
}

type Response struct {
	Status      int
	ContentType string
	Result      []byte
}

// Begin claims key. It returns the stored response when the key already
// completed, ErrInFlight while another request holds it, and (nil, nil) when
// the caller owns the key and must Complete or Abandon it.
func (i *Idempotency) Begin(ctx context.Context, key string) (*Response, error) {
	ok, err := i.redis.Reserve(ctx, key, i.ttl)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	existing, err := i.redis.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// expired between the two calls
		return i.Begin(ctx, key)
	}
	if existing.Status == 0 {
		return nil, ErrInFlight
	}
	return &Response{Status: existing.Status, ContentType: existing.ContentType, Result: existing.Result}, nil
}

func (i *Idempotency) Complete(ctx context.Context, key string, resp Response) error {
	return i.redis.Set(ctx, key, redisadapter.IdempResponse{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Result:      resp.Result,
	}, i.ttl)
}

// Abandon releases key so the request can be retried.
func (i *Idempotency) Abandon(ctx context.Context, key string) error {
	return i.redis.Delete(ctx, key)
}
