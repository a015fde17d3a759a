package http

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/doubt-service/internal/auth"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

// IdempotencyHeader carries the client-chosen key for a mutating request.
const IdempotencyHeader = "Idempotency-Key"

// KeyStore remembers idempotency keys for a TTL.
type KeyStore interface {
	// Reserve returns false when key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisKeyStore shares keys across replicas.
type RedisKeyStore struct {
	client *redis.Client
	prefix string
}

// NewRedisKeyStore builds a Redis backed store.
func NewRedisKeyStore(client *redis.Client, prefix string) *RedisKeyStore {
	return &RedisKeyStore{client: client, prefix: prefix}
}

func (s *RedisKeyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, 1, ttl).Result()
}

func (s *RedisKeyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// MemoryKeyStore keeps keys in process. Used when Redis is not configured.
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewMemoryKeyStore builds an in-process store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryKeyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.keys {
		if now.After(exp) {
			delete(s.keys, k)
		}
	}
	if _, held := s.keys[key]; held {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryKeyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

// Idempotency rejects a repeated Idempotency-Key from the same caller within
// ttl. Requests without the header pass through. A failed request frees its
// key so the client can retry.
func Idempotency(store KeyStore, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyHeader)
		if key == "" || store == nil {
			return c.Next()
		}
		scoped := auth.ActorFromContext(c).UserID + ":" + c.Method() + ":" + c.Path() + ":" + key
		ok, err := store.Reserve(c.UserContext(), scoped, ttl)
		if err != nil {
			return apperrors.NewUnavailable(err)
		}
		if !ok {
			return apperrors.NewDuplicateSubmission(key)
		}
		err = c.Next()
		if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
			_ = store.Release(context.Background(), scoped)
		}
		return err
	}
}
