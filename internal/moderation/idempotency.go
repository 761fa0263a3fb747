package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const pendingMarker = "pending"

// PendingKeyTTL bounds how long a claimed but unfinished key blocks retries.
// A process that dies mid-action leaves its key behind for at most this long;
// completed keys keep the full TTL.
const PendingKeyTTL = 2 * time.Minute

// claimAttempts bounds the SETNX/GET loop when keys keep expiring between
// the two calls.
const claimAttempts = 3

// KeyStore records client-supplied idempotency keys so a repeated submission
// returns the original action instead of executing again.
type KeyStore interface {
	// Claim reserves key. If the key is already complete it returns the
	// stored action ID; if it is reserved but not complete, actionID is empty
	// and claimed is false.
	Claim(ctx context.Context, key string) (actionID string, claimed bool, err error)
	Complete(ctx context.Context, key, actionID string) error
	Release(ctx context.Context, key string) error
}

// RedisKeys is the subset of *db.RedisStore used for idempotency keys.
type RedisKeys interface {
	ClaimKey(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	SetKey(ctx context.Context, key, value string, ttl time.Duration) error
	GetKey(ctx context.Context, key string) (string, error)
	DeleteKey(ctx context.Context, key string) error
}

// RedisKeyStore keeps idempotency keys in Redis so every instance sees them.
type RedisKeyStore struct {
	redis      RedisKeys
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewRedisKeyStore creates a Redis-backed key store. Completed keys live for
// ttl.
func NewRedisKeyStore(r RedisKeys, ttl time.Duration) *RedisKeyStore {
	pending := PendingKeyTTL
	if ttl < pending {
		pending = ttl
	}
	return &RedisKeyStore{redis: r, ttl: ttl, pendingTTL: pending}
}

func redisKey(key string) string {
	return "idempotency:" + key
}

func (s *RedisKeyStore) Claim(ctx context.Context, key string) (string, bool, error) {
	for i := 0; i < claimAttempts; i++ {
		ok, err := s.redis.ClaimKey(ctx, redisKey(key), pendingMarker, s.pendingTTL)
		if err != nil || ok {
			return "", ok, err
		}
		val, err := s.redis.GetKey(ctx, redisKey(key))
		if err != nil {
			return "", false, err
		}
		switch val {
		case "":
			// expired between SETNX and GET
			continue
		case pendingMarker:
			return "", false, nil
		default:
			return val, false, nil
		}
	}
	return "", false, fmt.Errorf("claim idempotency key %q: gave up after %d attempts", key, claimAttempts)
}

func (s *RedisKeyStore) Complete(ctx context.Context, key, actionID string) error {
	return s.redis.SetKey(ctx, redisKey(key), actionID, s.ttl)
}

func (s *RedisKeyStore) Release(ctx context.Context, key string) error {
	return s.redis.DeleteKey(ctx, redisKey(key))
}

// MemoryKeyStore keeps idempotency keys in a bounded expiring LRU.
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys *expirable.LRU[string, string]
}

// NewMemoryKeyStore creates an in-process key store.
func NewMemoryKeyStore(size int, ttl time.Duration) *MemoryKeyStore {
	return &MemoryKeyStore{keys: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (s *MemoryKeyStore) Claim(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if val, ok := s.keys.Get(key); ok {
		if val == pendingMarker {
			return "", false, nil
		}
		return val, false, nil
	}
	s.keys.Add(key, pendingMarker)
	return "", true, nil
}

func (s *MemoryKeyStore) Complete(ctx context.Context, key, actionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys.Add(key, actionID)
	return nil
}

func (s *MemoryKeyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys.Remove(key)
	return nil
}
