// Package session keeps server-side login sessions referenced by a signed cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrNotFound = errors.New("session not found")

// Store maps session ids to user ids.
type Store interface {
	Get(ctx context.Context, id string) (uint, error)
	Set(ctx context.Context, id string, userID uint, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	userID  uint
	expires time.Time
}

// MemoryStore is process-local; sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	if m.now().After(e.expires) {
		delete(m.sessions, id)
		return 0, ErrNotFound
	}
	return e.userID, nil
}

func (m *MemoryStore) Set(_ context.Context, id string, userID uint, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	// opportunistic sweep keeps abandoned sessions from piling up
	for k, e := range m.sessions {
		if now.After(e.expires) {
			delete(m.sessions, k)
		}
	}
	m.sessions[id] = memoryEntry{userID: userID, expires: now.Add(ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// RedisStore keeps sessions under session:<id> with a TTL.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(id string) string { return "session:" + id }

func (r *RedisStore) Get(ctx context.Context, id string) (uint, error) {
	v, err := r.rdb.Get(ctx, redisKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	return uint(n), nil
}

func (r *RedisStore) Set(ctx context.Context, id string, userID uint, ttl time.Duration) error {
	return r.rdb.Set(ctx, redisKey(id), strconv.FormatUint(uint64(userID), 10), ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, redisKey(id)).Err()
}
