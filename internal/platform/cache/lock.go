package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates the mutex is already held by another owner.
var ErrLockHeld = errors.New("platform/cache: lock already held")

// Mutex is a best-effort distributed lock backed by SET NX with a TTL.
// Used to keep singleton jobs (annual aggregation) from overlapping.
type Mutex struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewMutex constructs a mutex for the given key.
func NewMutex(client *redis.Client, key string, ttl time.Duration) *Mutex {
	return &Mutex{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock or returns ErrLockHeld.
func (m *Mutex) Acquire(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, m.key, token, m.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	m.token = token
	return nil
}

// Release drops the lock if this mutex still owns it.
func (m *Mutex) Release(ctx context.Context) error {
	if m.token == "" {
		return nil
	}
	// Delete only when the stored token matches, so an expired lock taken
	// over by another owner is left alone.
	const script = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
	err := m.client.Eval(ctx, script, []string{m.key}, m.token).Err()
	m.token = ""
	return err
}
