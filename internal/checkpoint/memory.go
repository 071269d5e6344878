package checkpoint

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// MemoryStore is an in-process Store. It is the fallback backend when the
// durable store is unavailable; checkpoints do not survive a restart.
//
// States are held serialized so callers cannot alias the stored value.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string][]byte{}}
}

func (s *MemoryStore) Load(ctx context.Context, threadID string) (*models.ConversationState, error) {
	s.mu.RLock()
	raw, ok := s.states[threadID]
	s.mu.RUnlock()
	if !ok {
		return nil, &ErrNotFound{ThreadID: threadID}
	}
	return decodeState(raw)
}

func (s *MemoryStore) Save(ctx context.Context, threadID string, state *models.ConversationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[threadID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Healthy(ctx context.Context) bool { return true }

func (s *MemoryStore) Close() {
	s.mu.Lock()
	s.states = map[string][]byte{}
	s.mu.Unlock()
}
