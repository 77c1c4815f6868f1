package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so the dashboard can run more
// than one replica behind a load balancer.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func key(id string) string {
	return fmt.Sprintf("gradebook:session:%s", id)
}

func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	data, err := r.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, nil
	} else if err != nil {
		return Session{}, fmt.Errorf("unable to load session (%w)", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("unable to decode session (%w)", err)
	}

	return s, nil
}

func (r *RedisStore) Put(ctx context.Context, id string, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("unable to encode session (%w)", err)
	}

	if err := r.client.Set(ctx, key(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("unable to store session (%w)", err)
	}

	return nil
}

func (r *RedisStore) Clear(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("unable to clear session (%w)", err)
	}

	return nil
}
