// Package conversation drives the per-turn state machine: routing a user
// message to an agent, suspending for human approval when the agent needs a
// permission, and resuming or cancelling from the user's reply. All state is
// checkpointed per thread so a turn survives process restarts.
package conversation

import (
	"fmt"
	"strings"
)

// NormalizeThreadID returns the namespaced thread id "{user}:{conversation}".
// A conversation id that already carries an owner prefix is returned
// unchanged, so the function is idempotent.
func NormalizeThreadID(userID, conversationID string) string {
	if strings.Contains(conversationID, ":") {
		return conversationID
	}
	return userID + ":" + conversationID
}

// ThreadIsolationError reports an attempt to touch a thread owned by a
// different user. It is never downgraded to a soft failure.
type ThreadIsolationError struct {
	ThreadID string
	UserID   string
}

func (e *ThreadIsolationError) Error() string {
	return fmt.Sprintf("thread %q is not owned by user %q", e.ThreadID, e.UserID)
}

// ValidateThreadID checks that threadID is namespaced to userID.
func ValidateThreadID(threadID, userID string) error {
	if userID == "" || !strings.HasPrefix(threadID, userID+":") {
		return &ThreadIsolationError{ThreadID: threadID, UserID: userID}
	}
	return nil
}

// IsThreadIsolation reports whether err is a ThreadIsolationError.
func IsThreadIsolation(err error) bool {
	_, ok := err.(*ThreadIsolationError)
	return ok
}
