package tickets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another request holds the key.
var ErrLockHeld = errors.New("tickets: lock held by another request")

// DefaultLockTTL bounds how long a crashed holder can block a key. It must
// outlive the confirmation wait; config validation enforces the margin.
const DefaultLockTTL = 2 * time.Minute

// Locker serialises requests on a key across one or more processes.
type Locker interface {
	// TryLock acquires key without waiting. The returned function releases it.
	TryLock(ctx context.Context, key string) (func(context.Context) error, error)
}

// releaseScript deletes the lock only while it still carries our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	token  func() string
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker builds a Redis-backed locker.
func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		prefix: "mintix:lock:",
		token:  uuid.NewString,
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(context.Context) error, error) {
	name := l.prefix + key
	token := l.token()
	ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

// LocalLocker implements Locker in process memory.
type LocalLocker struct {
	mu   sync.Mutex
	ttl  time.Duration
	seq  uint64
	held map[string]localLock
	now  func() time.Time
}

type localLock struct {
	id      uint64
	expires time.Time
}

var _ Locker = (*LocalLocker)(nil)

// NewLocalLocker builds an in-process locker.
func NewLocalLocker(ttl time.Duration) *LocalLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &LocalLocker{ttl: ttl, held: make(map[string]localLock), now: time.Now}
}

func (l *LocalLocker) TryLock(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, ErrLockHeld
	}
	l.seq++
	lock := localLock{id: l.seq, expires: now.Add(l.ttl)}
	l.held[key] = lock
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.id == lock.id {
			delete(l.held, key)
		}
		return nil
	}, nil
}
