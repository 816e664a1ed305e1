// Package redis provides a cycle lock and a response cache backed by Redis keys with TTLs.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"lobbi-trader/internal/storage"
)

// releaseScript deletes the key only if it still holds our owner token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is SET NX PX on a single key. Expiry is enforced by Redis itself.
type Lock struct {
	client goredis.UniversalClient
	key    string
	owner  string
	ttl    time.Duration
}

// NewLock creates a lock for key.
func NewLock(client goredis.UniversalClient, key, owner string, ttl time.Duration) *Lock {
	return &Lock{client: client, key: key, owner: owner, ttl: ttl}
}

var _ storage.Lock = (*Lock)(nil)

// TryAcquire sets the key if absent. Re-acquiring our own key refreshes the TTL.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := l.client.Get(ctx, l.key).Result()
	if err == goredis.Nil {
		// Expired between SETNX and GET.
		return l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	if current != l.owner {
		return false, nil
	}
	if err := l.client.PExpire(ctx, l.key, l.ttl).Err(); err != nil {
		return false, fmt.Errorf("redis pexpire: %w", err)
	}
	return true, nil
}

// Release deletes the key if we own it.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

// NewClient builds a client from an address, password and database number.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
