package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// ErrNoPendingTurn is returned when a resume arrives for a thread that is
// not suspended on a permission request.
var ErrNoPendingTurn = errors.New("conversation: no pending permission to resume")

type resumeAction int

const (
	actionApprove resumeAction = iota
	actionCancel
	actionNewQuery
)

// Short replies are matched against these phrases; anything longer is
// treated as a fresh query that abandons the pending request. Cancel phrases
// are checked first so "no, don't proceed" cancels.
var (
	cancelPhrases = []string{
		"no", "n", "nope", "cancel", "stop", "deny", "denied",
		"don't", "do not", "nevermind", "never mind", "abort",
	}
	approvePhrases = []string{
		"yes", "y", "yeah", "yep", "ok", "okay", "sure", "approve",
		"approved", "go ahead", "proceed", "do it", "continue", "please do",
	}
)

func interpretResume(response string) resumeAction {
	norm := strings.ToLower(strings.TrimSpace(response))
	norm = strings.Trim(norm, " \t.,!?")
	if norm == "" {
		return actionCancel
	}
	if len(strings.Fields(norm)) > 4 {
		return actionNewQuery
	}
	for _, p := range cancelPhrases {
		if norm == p || containsWordPhrase(norm, p) {
			return actionCancel
		}
	}
	for _, p := range approvePhrases {
		if norm == p || containsWordPhrase(norm, p) {
			return actionApprove
		}
	}
	return actionNewQuery
}

// containsWordPhrase reports whether phrase occurs in s on word boundaries.
func containsWordPhrase(s, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], phrase)
		if i < 0 {
			return false
		}
		i += idx
		end := i + len(phrase)
		beforeOK := i == 0 || !isWordChar(s[i-1])
		afterOK := end == len(s) || !isWordChar(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = i + 1
	}
}

func isWordChar(c byte) bool {
	return c == '\'' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// resumeLocked interprets the user's reply to a pending permission request.
// The thread lock is held.
func (m *Machine) resumeLocked(ctx context.Context, state *models.ConversationState, threadID, response string, start time.Time) (*models.TurnResult, error) {
	pending := state.PendingPermission
	if pending == nil {
		return nil, ErrNoPendingTurn
	}

	switch interpretResume(response) {
	case actionApprove:
		return m.approvePending(ctx, state, threadID, pending, response, start)
	case actionCancel:
		return m.cancelPending(ctx, state, threadID, pending, response, start)
	default:
		log.Info().
			Str("thread_id", threadID).
			Str("permission", pending.PermissionType).
			Msg("conversation: pending permission abandoned by new query")
		state.PendingPermission = nil
		state.RequiresUserInput = false
		return m.processLocked(ctx, state, threadID, response, start)
	}
}

func (m *Machine) approvePending(ctx context.Context, state *models.ConversationState, threadID string, pending *models.PermissionRequest, response string, start time.Time) (*models.TurnResult, error) {
	appendMessage(state, "user", "", response)
	state.PendingPermission = nil
	state.RequiresUserInput = false
	state.Phase = models.PhaseProcessing
	state.SharedMemory.ApprovedOperation = &models.ApprovedOperation{
		OperationID: pending.ID,
		ApprovedAt:  time.Now().UTC(),
	}

	decision := &models.RoutingDecision{
		PrimaryAgent:      pending.Agent,
		PrimaryConfidence: 1.0,
		RoutingReasoning:  fmt.Sprintf("resuming %s after user approval", pending.Agent),
		PermissionRequirement: models.PermissionRequirement{
			Required:       true,
			PermissionType: pending.PermissionType,
		},
	}
	return m.executeAgent(ctx, state, threadID, decision, pending.Query, start)
}

func (m *Machine) cancelPending(ctx context.Context, state *models.ConversationState, threadID string, pending *models.PermissionRequest, response string, start time.Time) (*models.TurnResult, error) {
	appendMessage(state, "user", "", response)

	answer := "Okay, I won't do that. Let me know if there's anything else."
	appendMessage(state, "assistant", pending.Agent, answer)

	state.PendingPermission = nil
	state.RequiresUserInput = false
	state.Phase = models.PhaseComplete
	state.IsComplete = true
	state.UpdatedAt = time.Now().UTC()

	if err := m.store.Save(ctx, threadID, state); err != nil {
		log.Error().Err(err).Str("thread_id", threadID).Msg("conversation: checkpoint save failed")
	}

	return &models.TurnResult{
		Success:          true,
		Answer:           answer,
		DelegatedAgent:   pending.Agent,
		Cancelled:        true,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
