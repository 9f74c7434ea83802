// internal/adapters/out/localstore/redis_store.go
package localstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps one device's key/value pairs in a Redis hash (key = namespace).
// Several devices share one client; each gets its own namespace.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisClient builds a client from "redis://..." URLs or a plain host:port.
func NewRedisClient(addr string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("localstore: redis addr is empty")
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		// not a redis:// URL, use as plain address
		if !strings.Contains(addr, ":") {
			addr = addr + ":6379"
		}
		opts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		}
	}
	return redis.NewClient(opts), nil
}

// PingRedis checks the connection with a bounded timeout.
func PingRedis(ctx context.Context, client redis.UniversalClient) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("localstore: redis ping failed: %w", err)
	}
	log.Printf("[localstore.redis] ping ok")
	return nil
}

func NewRedisStore(client redis.UniversalClient, namespace string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("localstore.RedisStore: client is nil")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return nil, errors.New("localstore.RedisStore: namespace is empty")
	}
	return &RedisStore{client: client, namespace: "localstore:" + namespace}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.namespace, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore.RedisStore: HGet %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.namespace, key, value).Err(); err != nil {
		return fmt.Errorf("localstore.RedisStore: HSet %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.namespace, key).Err(); err != nil {
		return fmt.Errorf("localstore.RedisStore: HDel %s: %w", key, err)
	}
	return nil
}
