package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises work per key. The returned unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func progressLockKey(identity int64) string {
	return fmt.Sprintf("progress:%d", identity)
}

// KeyedLocker is an in-process Locker. Entries are dropped once nobody holds or waits for them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedEntry)}
}

func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *KeyedLocker) release(key string, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrLockLost = errors.New("lock expired before release")

// RedisLocker shares locks between processes through SET NX PX with an owner token.
type RedisLocker struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:       client,
		prefix:       "levelquiz:lock:",
		ttl:          ttl,
		pollInterval: 25 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-time.After(l.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := l.release(redisKey, token); err != nil {
				log.Printf("[LOCK] release %s: %v", key, err)
			}
		})
	}, nil
}

func (l *RedisLocker) release(redisKey, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
