package realtime

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Registry maps a user identity to at most one active connection id. Binding
// overwrites any prior binding for that identity: multi-device fan-out is a
// non-goal. Each operation is a single atomic read/write/delete, so no
// application-level locking is layered on top of the shared store.
type Registry interface {
	Bind(ctx context.Context, userID, connID string) error
	Unbind(ctx context.Context, userID string) error
	Resolve(ctx context.Context, userID string) (string, bool, error)
}

const registryKeyPrefix = "realtime:user:sid:"

// RedisRegistry keeps bindings in a shared redis so any server instance can
// resolve a user's current connection.
type RedisRegistry struct {
	rdb *redis.Client
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

func (r *RedisRegistry) Bind(ctx context.Context, userID, connID string) error {
	return r.rdb.Set(ctx, registryKeyPrefix+userID, connID, 0).Err()
}

func (r *RedisRegistry) Unbind(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, registryKeyPrefix+userID).Err()
}

func (r *RedisRegistry) Resolve(ctx context.Context, userID string) (string, bool, error) {
	connID, err := r.rdb.Get(ctx, registryKeyPrefix+userID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return connID, true, nil
}

// MemoryRegistry is a process-local registry. It only works for a
// single-instance deployment: another process cannot resolve bindings held
// here. Tests and development use it; clustered setups need RedisRegistry.
type MemoryRegistry struct {
	mu     sync.RWMutex
	byUser map[string]string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{byUser: make(map[string]string)}
}

func (r *MemoryRegistry) Bind(ctx context.Context, userID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = connID
	return nil
}

func (r *MemoryRegistry) Unbind(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUser, userID)
	return nil
}

func (r *MemoryRegistry) Resolve(ctx context.Context, userID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok, nil
}
