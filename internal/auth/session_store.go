package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/BradenHooton/tajnur-auth/internal/models"
)

// SessionStore persists session state behind its opaque handle.
// Load returns (nil, nil) for an unknown or evicted handle.
type SessionStore interface {
	Load(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// MemorySessionStore keeps sessions in an expiring LRU inside the process.
// Entries are serialized so callers never share a *Session with the cache.
// The TTL is fixed at construction; the ttl passed to Save is ignored.
type MemorySessionStore struct {
	cache *expirable.LRU[string, []byte]
}

func NewMemorySessionStore(size int, ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		cache: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (s *MemorySessionStore) Load(_ context.Context, id string) (*models.Session, error) {
	data, ok := s.cache.Get(id)
	if !ok {
		return nil, nil
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *MemorySessionStore) Save(_ context.Context, sess *models.Session, _ time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	s.cache.Add(sess.ID, data)
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.cache.Remove(id)
	return nil
}

func (s *MemorySessionStore) Ping(context.Context) error {
	return nil
}

func (s *MemorySessionStore) Len() int {
	return s.cache.Len()
}
