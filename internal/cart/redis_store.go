package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/pos-billing-gateway/internal/lock"
)

const redisKeyPrefix = "pos:draft:"

// RedisStore keeps drafts as JSON documents in Redis so any instance can serve them.
type RedisStore struct {
	R      redis.UniversalClient
	Locker lock.Locker
	TTL    time.Duration
	Now    func() time.Time
}

// NewRedisStore builds a store whose updates are serialized by a Redis lock.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		R:      client,
		Locker: lock.Locker{R: client, MaxWait: 5 * time.Second},
		TTL:    ttl,
		Now:    time.Now,
	}
}

func (s *RedisStore) key(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *RedisStore) save(ctx context.Context, d Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return s.R.Set(ctx, s.key(d.ID), data, s.TTL).Err()
}

// Create stores a new draft.
func (s *RedisStore) Create(ctx context.Context, d Draft) error {
	return s.save(ctx, d)
}

// Get loads a draft.
func (s *RedisStore) Get(ctx context.Context, id string) (Draft, error) {
	data, err := s.R.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return d, nil
}

// Update loads, mutates and rewrites the draft while holding its lock.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Draft) error) (Draft, error) {
	var out Draft
	err := s.Locker.WithLock(ctx, s.key(id)+":lock", 10*time.Second, func(ctx context.Context) error {
		d, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&d); err != nil {
			return err
		}
		d.UpdatedAt = s.now()
		if err := s.save(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return Draft{}, err
	}
	return out, nil
}

// Delete removes a draft.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.R.Del(ctx, s.key(id)).Err()
}
