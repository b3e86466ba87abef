package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "replcheck_session"

// incrementScript bumps an existing counter only; INCR alone would resurrect
// invalidated sessions.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('INCR', KEYS[1]) - 1
end
return -1
`)

type redisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects to the redis server at addr (redis://host:port/db).
func NewRedisStore(addr string) (*redisStore, error) {
	if addr == "" {
		return nil, errors.New("redis store needs an address")
	}

	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("cant parse redis url: %w", err)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{opts.Addr},
		DB:           opts.DB,
		Username:     opts.Username,
		Password:     opts.Password,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	return &redisStore{client: client}, nil
}

func (s *redisStore) key(id string) string {
	return redisKeyPrefix + ":" + id
}

func (s *redisStore) Create(ctx context.Context) (string, error) {
	for {
		id := newSessionID()
		ok, err := s.client.SetNX(ctx, s.key(id), 0, 0).Result()
		if err != nil {
			return "", fmt.Errorf("redis create session error: %w", err)
		}

		if ok {
			return id, nil
		}
	}
}

func (s *redisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error (key='%s'): %w", id, err)
	}

	return n == 1, nil
}

func (s *redisStore) Increment(ctx context.Context, id string) (int, error) {
	v, err := incrementScript.Run(ctx, s.client, []string{s.key(id)}).Int()
	if err != nil {
		return 0, fmt.Errorf("redis increment error (key='%s'): %w", id, err)
	}

	if v < 0 {
		return 0, ErrNotFound
	}

	return v, nil
}

func (s *redisStore) Invalidate(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis delete error (key='%s'): %w", id, err)
	}

	return n > 0, nil
}

func (s *redisStore) Count(ctx context.Context) (int, error) {
	keys, err := s.client.Keys(ctx, redisKeyPrefix+":*").Result()
	if err != nil {
		return 0, fmt.Errorf("redis get keys error: %w", err)
	}

	return len(keys), nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
