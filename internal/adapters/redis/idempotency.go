package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// IdempResponse is a stored reply. Status 0 marks a request still in flight.
type IdempResponse struct {
	Status      int
	ContentType string
	Result      []byte
}

func idempKey(key string) string {
	return "idemp:" + key
}

// Reserve claims key for a new request. It returns false when the key exists.
func (i *Idempotency) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(IdempResponse{})
	if err != nil {
		return false, err
	}
	ok, err := i.client.SetNX(ctx, idempKey(key), data, ttl).Result()
	return ok, upstream(err, "reserve idempotency key")
}

func (i *Idempotency) Get(ctx context.Context, key string) (*IdempResponse, error) {
	val, err := i.client.Get(ctx, idempKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, upstream(err, "get idempotency key")
	}
	var resp IdempResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, errors.Wrap(err, "decode idempotency record")
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp IdempResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return upstream(i.client.Set(ctx, idempKey(key), data, ttl).Err(), "set idempotency key")
}

func (i *Idempotency) Delete(ctx context.Context, key string) error {
	return upstream(i.client.Del(ctx, idempKey(key)).Err(), "delete idempotency key")
}
