package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/adamsih300u/bastion-sub010/internal/checkpoint"
	"github.com/adamsih300u/bastion-sub010/internal/citations"
	"github.com/adamsih300u/bastion-sub010/internal/intent"
	"github.com/adamsih300u/bastion-sub010/internal/memory"
	"github.com/adamsih300u/bastion-sub010/internal/tagfilter"
	"github.com/adamsih300u/bastion-sub010/pkg/contracts"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// Checkpoints is the slice of the checkpoint layer the state machine needs.
// Satisfied by *checkpoint.Manager.
type Checkpoints interface {
	Load(ctx context.Context, threadID string) (*models.ConversationState, error)
	Save(ctx context.Context, threadID string, state *models.ConversationState) error
	UsingFallback() bool
}

// Config tunes the state machine.
type Config struct {
	// MaxConcurrentTurns bounds in-flight turns across all threads.
	// Defaults to 32.
	MaxConcurrentTurns int64

	// RecentMessageWindow is how many trailing messages the router sees.
	// Defaults to 6.
	RecentMessageWindow int

	// KnownTags and KnownCategories feed filter detection on each query.
	KnownTags       []string
	KnownCategories []string
}

// Machine executes conversation turns. Turns on the same thread are
// serialized by a per-thread lock; the checkpoint is reloaded under that lock
// so concurrent callers always see merged state.
type Machine struct {
	store  Checkpoints
	router *intent.Router
	agents contracts.AgentRegistry
	titles contracts.TitleService
	cfg    Config

	sem *semaphore.Weighted

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewMachine wires the state machine. titles may be nil.
func NewMachine(store Checkpoints, router *intent.Router, agents contracts.AgentRegistry, titles contracts.TitleService, cfg Config) *Machine {
	if cfg.MaxConcurrentTurns <= 0 {
		cfg.MaxConcurrentTurns = 32
	}
	if cfg.RecentMessageWindow <= 0 {
		cfg.RecentMessageWindow = 6
	}
	return &Machine{
		store:  store,
		router: router,
		agents: agents,
		titles: titles,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrentTurns),
		locks:  map[string]*sync.Mutex{},
	}
}

// Status is a point-in-time view of a conversation.
type Status struct {
	State         *models.ConversationState `json:"state"`
	UsingFallback bool                      `json:"using_fallback"`
}

func (m *Machine) lockFor(threadID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	mu, ok := m.locks[threadID]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[threadID] = mu
	}
	return mu
}

// ProcessTurn runs one user message through routing, optional permission
// suspension, and agent execution. When the thread is already suspended on a
// permission the message is interpreted as the user's reply to it.
func (m *Machine) ProcessTurn(ctx context.Context, userID, conversationID, message string) (*models.TurnResult, error) {
	start := time.Now()

	threadID := NormalizeThreadID(userID, conversationID)
	if err := ValidateThreadID(threadID, userID); err != nil {
		return nil, err
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("conversation: acquire turn slot: %w", err)
	}
	defer m.sem.Release(1)

	mu := m.lockFor(threadID)
	mu.Lock()
	defer mu.Unlock()

	state, err := m.store.Load(ctx, threadID)
	if err != nil {
		if !checkpoint.IsNotFound(err) {
			return nil, err
		}
		state = newConversationState(userID, conversationID)
	}

	if state.RequiresUserInput && state.PendingPermission != nil {
		return m.resumeLocked(ctx, state, threadID, message, start)
	}
	return m.processLocked(ctx, state, threadID, message, start)
}

// ResumeTurn delivers the user's reply to a suspended turn.
func (m *Machine) ResumeTurn(ctx context.Context, userID, conversationID, response string) (*models.TurnResult, error) {
	start := time.Now()

	threadID := NormalizeThreadID(userID, conversationID)
	if err := ValidateThreadID(threadID, userID); err != nil {
		return nil, err
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("conversation: acquire turn slot: %w", err)
	}
	defer m.sem.Release(1)

	mu := m.lockFor(threadID)
	mu.Lock()
	defer mu.Unlock()

	state, err := m.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return m.resumeLocked(ctx, state, threadID, response, start)
}

// GetStatus returns the checkpointed state of a conversation.
func (m *Machine) GetStatus(ctx context.Context, userID, conversationID string) (*Status, error) {
	threadID := NormalizeThreadID(userID, conversationID)
	if err := ValidateThreadID(threadID, userID); err != nil {
		return nil, err
	}
	state, err := m.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &Status{State: state, UsingFallback: m.store.UsingFallback()}, nil
}

func newConversationState(userID, conversationID string) *models.ConversationState {
	now := time.Now().UTC()
	return &models.ConversationState{
		UserID:         userID,
		ConversationID: conversationID,
		Phase:          models.PhaseIdle,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// processLocked runs a fresh turn. The thread lock is held.
func (m *Machine) processLocked(ctx context.Context, state *models.ConversationState, threadID, message string, start time.Time) (*models.TurnResult, error) {
	appendMessage(state, "user", "", message)
	state.Phase = models.PhaseProcessing
	state.RequiresUserInput = false
	state.IsComplete = false
	state.ErrorState = ""

	if state.ConversationTitle == "" && m.titles != nil {
		if title, err := m.titles.Generate(ctx, message); err == nil && title != "" {
			state.ConversationTitle = title
		} else if err != nil {
			log.Warn().Err(err).Str("thread_id", threadID).Msg("conversation: title generation failed")
		}
	}

	rctx := models.RoutingContext{
		RecentMessages: recentMessages(state.Messages, m.cfg.RecentMessageWindow),
		SharedMemory:   state.SharedMemory,
		LastAgent:      state.ActiveAgent,
	}
	if match := tagfilter.Detect(message, m.cfg.KnownTags, m.cfg.KnownCategories); match.ShouldFilter {
		rctx.FilterTags = match.FilterTags
		rctx.FilterCategory = match.FilterCategory
	}

	decision := m.router.Classify(ctx, message, rctx)
	log.Debug().
		Str("thread_id", threadID).
		Str("agent", string(decision.PrimaryAgent)).
		Float64("confidence", decision.PrimaryConfidence).
		Msg("conversation: routed")

	perm := decision.PermissionRequirement
	if perm.Required && !perm.AutoGrantEligible {
		return m.suspendForPermission(ctx, state, threadID, &models.PermissionRequest{
			ID:             uuid.NewString(),
			PermissionType: perm.PermissionType,
			Agent:          decision.PrimaryAgent,
			Query:          message,
			Reasoning:      perm.Reasoning,
			RequestedAt:    time.Now().UTC(),
		}, &decision, start)
	}
	if perm.Required {
		log.Info().
			Str("thread_id", threadID).
			Str("permission", perm.PermissionType).
			Msg("conversation: permission auto-granted")
	}

	return m.executeAgent(ctx, state, threadID, &decision, message, start)
}

// suspendForPermission persists the pending request before returning, so the
// suspension survives a crash between the response and the user's reply.
func (m *Machine) suspendForPermission(ctx context.Context, state *models.ConversationState, threadID string, req *models.PermissionRequest, decision *models.RoutingDecision, start time.Time) (*models.TurnResult, error) {
	state.PendingPermission = req
	state.RequiresUserInput = true
	state.Phase = models.PhaseAwaitingPermission
	state.UpdatedAt = time.Now().UTC()

	if err := m.store.Save(ctx, threadID, state); err != nil {
		return nil, fmt.Errorf("conversation: persist pending permission: %w", err)
	}

	prompt := fmt.Sprintf("The %s agent needs %s to answer this. Reply \"yes\" to approve or \"no\" to cancel.",
		req.Agent, permissionNoun(req.PermissionType))
	return &models.TurnResult{
		Success:          true,
		Answer:           prompt,
		DelegatedAgent:   req.Agent,
		RoutingDecision:  decision,
		AwaitingApproval: true,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func permissionNoun(permType string) string {
	switch permType {
	case "web_access":
		return "web access"
	case "":
		return "your approval"
	default:
		return permType
	}
}

// executeAgent runs the selected agent and finalizes the turn. Agent errors
// become a failed-but-answered turn, never an error to the caller.
func (m *Machine) executeAgent(ctx context.Context, state *models.ConversationState, threadID string, decision *models.RoutingDecision, query string, start time.Time) (*models.TurnResult, error) {
	agent := m.agents.Agent(decision.PrimaryAgent)
	if agent == nil {
		agent = m.agents.Agent(models.AgentChat)
	}
	if agent == nil {
		return m.failTurn(ctx, state, threadID, decision, start,
			fmt.Errorf("no agent registered for %q", decision.PrimaryAgent))
	}

	result, err := agent.Execute(ctx, query, state.SharedMemory)
	if err != nil {
		return m.failTurn(ctx, state, threadID, decision, start, err)
	}
	if result == nil {
		return m.failTurn(ctx, state, threadID, decision, start,
			fmt.Errorf("agent %q returned no result", agent.Type()))
	}

	if result.RequiresPermission != nil {
		req := result.RequiresPermission
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		if req.Agent == "" {
			req.Agent = agent.Type()
		}
		if req.Query == "" {
			req.Query = query
		}
		if req.RequestedAt.IsZero() {
			req.RequestedAt = time.Now().UTC()
		}
		return m.suspendForPermission(ctx, state, threadID, req, decision, start)
	}

	if result.UpdatedSharedMemory != nil {
		state.SharedMemory = memory.Merge(state.SharedMemory, *result.UpdatedSharedMemory)
	}
	state.SharedMemory.LastAgent = agent.Type()

	answer, cites := citations.Aggregate(result.Response, result.ToolResults)
	msgID := appendMessage(state, "assistant", agent.Type(), answer)

	state.ActiveAgent = agent.Type()
	state.Phase = models.PhaseComplete
	state.IsComplete = true
	state.RequiresUserInput = false
	state.PendingPermission = nil
	state.UpdatedAt = time.Now().UTC()

	if err := m.store.Save(ctx, threadID, state); err != nil {
		// The answer is already produced; losing it over a checkpoint write
		// would be worse than serving it. The health monitor handles the
		// backend.
		log.Error().Err(err).Str("thread_id", threadID).Msg("conversation: checkpoint save failed")
	}

	return &models.TurnResult{
		Success:          true,
		Answer:           answer,
		DelegatedAgent:   agent.Type(),
		RoutingDecision:  decision,
		Citations:        cites,
		MessageID:        msgID,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (m *Machine) failTurn(ctx context.Context, state *models.ConversationState, threadID string, decision *models.RoutingDecision, start time.Time, cause error) (*models.TurnResult, error) {
	log.Error().Err(cause).Str("thread_id", threadID).Msg("conversation: agent execution failed")

	answer := "Sorry, something went wrong while handling that. Please try again."
	appendMessage(state, "assistant", decision.PrimaryAgent, answer)
	state.ErrorState = cause.Error()
	state.Phase = models.PhaseComplete
	state.IsComplete = true
	state.RequiresUserInput = false
	state.PendingPermission = nil
	state.UpdatedAt = time.Now().UTC()

	if err := m.store.Save(ctx, threadID, state); err != nil {
		log.Error().Err(err).Str("thread_id", threadID).Msg("conversation: checkpoint save failed")
	}

	return &models.TurnResult{
		Success:          false,
		Answer:           answer,
		DelegatedAgent:   decision.PrimaryAgent,
		RoutingDecision:  decision,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func appendMessage(state *models.ConversationState, role string, agent models.AgentType, content string) string {
	id := uuid.NewString()
	state.Messages = append(state.Messages, models.Message{
		ID:        id,
		Role:      role,
		Agent:     agent,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	return id
}

func recentMessages(msgs []models.Message, n int) []models.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
