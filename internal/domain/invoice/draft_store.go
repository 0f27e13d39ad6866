package invoice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// memoryDraftStore keeps drafts as encoded JSON so callers never share
// pointers into stored trees.
type memoryDraftStore struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID][]byte
}

func NewMemoryDraftStore() DraftStore {
	return &memoryDraftStore{drafts: make(map[uuid.UUID][]byte)}
}

func (s *memoryDraftStore) Get(_ context.Context, id uuid.UUID) (*Invoice, error) {
	s.mu.RLock()
	raw, ok := s.drafts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return decodeDraft(raw)
}

func (s *memoryDraftStore) Save(_ context.Context, inv *Invoice) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	s.mu.Lock()
	s.drafts[inv.ID] = raw
	s.mu.Unlock()
	return nil
}

func (s *memoryDraftStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	delete(s.drafts, id)
	return nil
}

const draftKeyPrefix = "invoice:draft:"

// redisDraftStore keeps drafts in Redis with a sliding TTL so abandoned
// editing sessions expire.
type redisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDraftStore(client *redis.Client, ttl time.Duration) DraftStore {
	return &redisDraftStore{client: client, ttl: ttl}
}

func draftKey(id uuid.UUID) string { return draftKeyPrefix + id.String() }

func (s *redisDraftStore) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	raw, err := s.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get draft: %w", err)
	}
	return decodeDraft(raw)
}

func (s *redisDraftStore) Save(ctx context.Context, inv *Invoice) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(inv.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set draft: %w", err)
	}
	return nil
}

func (s *redisDraftStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.client.Del(ctx, draftKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis delete draft: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return nil
}

func decodeDraft(raw []byte) (*Invoice, error) {
	var inv Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if inv.Hidden == nil {
		inv.Hidden = make(map[uuid.UUID]bool)
	}
	return &inv, nil
}
