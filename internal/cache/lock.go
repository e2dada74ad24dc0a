package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// deviceLockPrefix is the Redis key prefix for device locks.
	deviceLockPrefix = "device:lock:"
	// lockRetryInterval is how often a contended lock is retried.
	lockRetryInterval = 50 * time.Millisecond
)

// ErrLockLost is returned on release when the lock expired or was taken over.
var ErrLockLost = errors.New("device lock lost before release")

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// extendScript refreshes the TTL only if the lock still holds our token.
var extendScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return 0
`)

// DeviceLock serialises access to one device across gateway replicas.
type DeviceLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// DeviceLock returns a lock for the device at addr.
// ttl bounds how long a crashed holder can block others.
func (c *Cache) DeviceLock(addr string, ttl time.Duration) *DeviceLock {
	return &DeviceLock{
		client: c.client,
		key:    deviceLockKey(addr),
		ttl:    ttl,
	}
}

// Lock blocks until the lock is acquired or ctx is done.
// The lock is refreshed every ttl/3 until the returned unlock func is called,
// so a session may run longer than ttl.
func (l *DeviceLock) Lock(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx failed: %w", err)
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go l.keepAlive(token, stop, done)

			var once sync.Once
			return func(ctx context.Context) error {
				once.Do(func() { close(stop) })
				<-done
				return l.release(ctx, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (l *DeviceLock) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			// Transient errors are retried on the next tick; a missing token is final.
			if err == nil && n == 0 {
				return
			}
		}
	}
}

func (l *DeviceLock) release(ctx context.Context, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func deviceLockKey(addr string) string {
	return deviceLockPrefix + addr
}
