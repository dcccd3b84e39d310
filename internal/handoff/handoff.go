// Package handoff persists the state a paid submission needs after the
// payment redirect. The browser only keeps a session cookie; everything
// else lives in a Store keyed by that session.
package handoff

import (
	"context"
	"sync"
	"time"

	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

// DefaultTTL bounds how long an abandoned payment keeps its hand-off.
const DefaultTTL = 2 * time.Hour

// Store keeps one hand-off per session. Load returns model.ErrNoHandoff
// when nothing is stored.
type Store interface {
	Save(ctx context.Context, h *model.HandoffState) error
	Load(ctx context.Context, sessionID string) (*model.HandoffState, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

// Save stores an encoded copy so later mutation by the caller is not seen.
func (s *MemoryStore) Save(_ context.Context, h *model.HandoffState) error {
	b, err := model.EncodeHandoff(h)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[h.SessionID] = b
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*model.HandoffState, error) {
	s.mu.Lock()
	b, ok := s.items[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, model.ErrNoHandoff
	}
	return model.DecodeHandoff(b)
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.items, sessionID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored hand-offs.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
