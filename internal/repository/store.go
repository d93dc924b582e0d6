package repository

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"shopadvisor/internal/model"
)

// StateStore holds per-conversation dialogue state across turns. Update
// serializes read-modify-write cycles per conversation key; operations on
// different keys never block each other. The core never deletes state itself;
// expiry is the store's (or the operator's) business.
type StateStore interface {
	// Get returns the state for a conversation, or nil when none exists.
	Get(ctx context.Context, conversationID string) (*model.ConversationState, error)

	// Update applies mutate to the current state (a fresh zero state when none
	// exists) and persists the result, all under the per-key serialization.
	Update(ctx context.Context, conversationID string, mutate func(*model.ConversationState) error) error

	Close() error
}

// MemoryStore is the default in-process store. Expired conversations are
// purged by the underlying cache.
type MemoryStore struct {
	cache *cache.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemoryStore creates a store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(ttl, ttl/4),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) keyLock(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[conversationID] = l
	}
	return l
}

func (s *MemoryStore) Get(_ context.Context, conversationID string) (*model.ConversationState, error) {
	if x, found := s.cache.Get(conversationID); found {
		state := x.(model.ConversationState)
		state.LastConstraints = state.LastConstraints.Clone()
		return &state, nil
	}
	return nil, nil
}

func (s *MemoryStore) Update(_ context.Context, conversationID string, mutate func(*model.ConversationState) error) error {
	l := s.keyLock(conversationID)
	l.Lock()
	defer l.Unlock()

	state := model.ConversationState{ConversationID: conversationID}
	if x, found := s.cache.Get(conversationID); found {
		state = x.(model.ConversationState)
		state.LastConstraints = state.LastConstraints.Clone()
	}
	if err := mutate(&state); err != nil {
		return err
	}
	state.UpdatedAt = time.Now().UTC()
	// Clone on write so the caller's set never aliases the cached copy.
	state.LastConstraints = state.LastConstraints.Clone()
	s.cache.Set(conversationID, state, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
