package checkpoint

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

type fakeStore struct {
	mu      sync.Mutex
	states  map[string]*models.ConversationState
	healthy atomic.Bool
	closed  atomic.Bool
}

func newFakeStore() *fakeStore {
	s := &fakeStore{states: map[string]*models.ConversationState{}}
	s.healthy.Store(true)
	return s
}

func (s *fakeStore) Load(ctx context.Context, threadID string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[threadID]
	if !ok {
		return nil, &ErrNotFound{ThreadID: threadID}
	}
	return st, nil
}

func (s *fakeStore) Save(ctx context.Context, threadID string, state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[threadID] = state
	return nil
}

func (s *fakeStore) Healthy(ctx context.Context) bool { return s.healthy.Load() }
func (s *fakeStore) Close()                           { s.closed.Store(true) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestManager_FallbackAfterRetries(t *testing.T) {
	var attempts atomic.Int64
	m := NewManager(context.Background(), ManagerConfig{
		MaxRetries:     3,
		RetryInterval:  time.Millisecond,
		HealthInterval: time.Hour,
		Connect: func(ctx context.Context) (Store, error) {
			attempts.Add(1)
			return nil, errors.New("connection refused")
		},
	})
	defer m.Cleanup()

	if got := attempts.Load(); got != 4 {
		t.Errorf("connect attempts = %d, want 4 (initial + 3 retries)", got)
	}
	if !m.UsingFallback() {
		t.Error("UsingFallback() = false, want true after exhausted retries")
	}
	if !m.Healthy(context.Background()) {
		t.Error("Healthy() = false, want true on in-process fallback")
	}

	// The fallback still serves reads and writes.
	ctx := context.Background()
	state := &models.ConversationState{UserID: "u1", ConversationID: "c1", Phase: models.PhaseIdle}
	if err := m.Save(ctx, "u1:c1", state); err != nil {
		t.Fatalf("Save on fallback: %v", err)
	}
	got, err := m.Load(ctx, "u1:c1")
	if err != nil {
		t.Fatalf("Load on fallback: %v", err)
	}
	if got.ConversationID != "c1" || got.Phase != models.PhaseIdle {
		t.Errorf("loaded state = %+v, want conversation c1 in idle phase", got)
	}
}

func TestManager_DurableWhenConnectSucceeds(t *testing.T) {
	fake := newFakeStore()
	m := NewManager(context.Background(), ManagerConfig{
		HealthInterval: time.Hour,
		Connect: func(ctx context.Context) (Store, error) {
			return fake, nil
		},
	})
	defer m.Cleanup()

	if m.UsingFallback() {
		t.Fatal("UsingFallback() = true, want false when connect succeeds")
	}
	ctx := context.Background()
	if err := m.Save(ctx, "u:c", &models.ConversationState{UserID: "u", ConversationID: "c"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := fake.states["u:c"]; !ok {
		t.Error("save did not reach the durable backend")
	}
	if _, err := m.Load(ctx, "missing"); !IsNotFound(err) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManager_RecoversFromFallback(t *testing.T) {
	fake := newFakeStore()
	var available atomic.Bool
	m := NewManager(context.Background(), ManagerConfig{
		MaxRetries:     1,
		RetryInterval:  time.Millisecond,
		HealthInterval: 10 * time.Millisecond,
		Connect: func(ctx context.Context) (Store, error) {
			if !available.Load() {
				return nil, errors.New("connection refused")
			}
			return fake, nil
		},
	})
	defer m.Cleanup()

	if !m.UsingFallback() {
		t.Fatal("expected fallback mode at start")
	}

	available.Store(true)
	waitFor(t, func() bool { return !m.UsingFallback() })
}

func TestManager_ReinitializesUnhealthyBackend(t *testing.T) {
	first := newFakeStore()
	second := newFakeStore()
	var connects atomic.Int64
	m := NewManager(context.Background(), ManagerConfig{
		HealthInterval: 10 * time.Millisecond,
		Connect: func(ctx context.Context) (Store, error) {
			if connects.Add(1) == 1 {
				return first, nil
			}
			return second, nil
		},
	})
	defer m.Cleanup()

	first.healthy.Store(false)
	waitFor(t, func() bool { return first.closed.Load() })
	waitFor(t, func() bool {
		return m.Healthy(context.Background()) && !m.UsingFallback()
	})
}

func TestManager_CleanupClosesStore(t *testing.T) {
	fake := newFakeStore()
	m := NewManager(context.Background(), ManagerConfig{
		HealthInterval: time.Hour,
		Connect: func(ctx context.Context) (Store, error) {
			return fake, nil
		},
	})

	m.Cleanup()
	m.Cleanup() // idempotent
	if !fake.closed.Load() {
		t.Error("Cleanup did not close the active store")
	}
}

func TestDecodeState_SalvagesMalformedMemory(t *testing.T) {
	raw := []byte(`{
		"user_id": "alice",
		"conversation_id": "c1",
		"phase": "complete",
		"shared_memory": {
			"agent_handoffs": "not-a-list",
			"research_findings": {"go": "a language"},
			"planner_notes": ["kept"]
		}
	}`)

	state, err := decodeState(raw)
	if err != nil {
		t.Fatalf("decodeState: %v", err)
	}
	if state.UserID != "alice" || state.Phase != models.PhaseComplete {
		t.Errorf("state = %+v", state)
	}
	if len(state.SharedMemory.AgentHandoffs) != 0 {
		t.Errorf("malformed handoffs kept: %+v", state.SharedMemory.AgentHandoffs)
	}
	if state.SharedMemory.ResearchFindings["go"] != "a language" {
		t.Errorf("valid field lost: %+v", state.SharedMemory.ResearchFindings)
	}
	if _, ok := state.SharedMemory.Extra["planner_notes"]; !ok {
		t.Error("unknown field not preserved")
	}
}

func TestMemoryStore_CopiesState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	state := &models.ConversationState{UserID: "u", ConversationID: "c", ConversationTitle: "hello"}
	if err := s.Save(ctx, "u:c", state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	state.ConversationTitle = "mutated"

	got, err := s.Load(ctx, "u:c")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ConversationTitle != "hello" {
		t.Errorf("stored state aliased caller value: title = %q", got.ConversationTitle)
	}
}
