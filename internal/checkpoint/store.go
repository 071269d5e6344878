// Package checkpoint provides durable persistence of conversation state,
// keyed by thread id.
//
// The durable backend is PostgreSQL (one JSONB row per thread). When the
// backend cannot be reached after retries the Manager degrades to an
// in-process ephemeral store, a degraded-but-available mode surfaced to
// operators via UsingFallback, never a fatal error.
package checkpoint

import (
	"context"
	"encoding/json"

	"github.com/adamsih300u/bastion-sub010/internal/memory"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// Store is the persistence interface the conversation state machine uses.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the checkpointed state for a thread, or *ErrNotFound if
	// the thread has never been saved.
	Load(ctx context.Context, threadID string) (*models.ConversationState, error)

	// Save persists the state, replacing any previous checkpoint.
	Save(ctx context.Context, threadID string, state *models.ConversationState) error

	// Healthy reports whether the backend can serve a trivial read.
	Healthy(ctx context.Context) bool

	// Close releases backend resources.
	Close()
}

// ErrNotFound is returned by Load when no checkpoint exists for a thread.
type ErrNotFound struct {
	ThreadID string
}

func (e *ErrNotFound) Error() string {
	return "checkpoint not found: " + e.ThreadID
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

// decodeState decodes a checkpointed state. Shared memory is validated field
// by field, so one malformed field degrades to a dropped field instead of
// stranding the whole thread.
func decodeState(raw []byte) (*models.ConversationState, error) {
	var st struct {
		models.ConversationState
		SharedMemory map[string]any `json:"shared_memory"`
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	state := st.ConversationState
	state.SharedMemory = memory.Validate(st.SharedMemory)
	return &state, nil
}
