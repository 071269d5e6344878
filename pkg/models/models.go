// Package models defines the shared data model for the Bastion conversation
// orchestration core: routing decisions, mergeable shared memory, conversation
// state, citations, and tag-filter results.
//
// Everything here is JSON-tagged because the same structs travel over the API
// surface and into checkpoint storage.
package models

import (
	"encoding/json"
	"time"
)

// ── Agents ───────────────────────────────────────────────────

// AgentType identifies a specialized agent known to the router.
type AgentType string

const (
	AgentChat     AgentType = "chat"
	AgentResearch AgentType = "research"
	AgentFiction  AgentType = "fiction_editing"
	AgentWargame  AgentType = "wargaming"
	AgentData     AgentType = "data_analysis"
)

// ActionIntent is the coarse action classification of a user turn.
type ActionIntent string

const (
	IntentObservation  ActionIntent = "observation"
	IntentGeneration   ActionIntent = "generation"
	IntentModification ActionIntent = "modification"
	IntentQuery        ActionIntent = "query"
	IntentAnalysis     ActionIntent = "analysis"
	IntentManagement   ActionIntent = "management"
)

// CollaborationPermission describes whether an agent may hand work to peers.
type CollaborationPermission string

const (
	CollaborationOpen     CollaborationPermission = "open"
	CollaborationAskFirst CollaborationPermission = "ask_first"
	CollaborationNone     CollaborationPermission = "none"
)

// ── Routing ──────────────────────────────────────────────────

// AgentCapabilityMatch is one scored candidate produced by agent selection.
type AgentCapabilityMatch struct {
	AgentType               AgentType               `json:"agent_type"`
	DisplayName             string                  `json:"display_name"`
	CapabilitiesMatched     []string                `json:"capabilities_matched"`
	ConfidenceScore         float64                 `json:"confidence_score"`
	SpecialtiesRelevant     []string                `json:"specialties_relevant"`
	CollaborationPermission CollaborationPermission `json:"collaboration_permission"`
	Reasoning               string                  `json:"reasoning"`
}

// PermissionRequirement describes a permission the selected agent needs
// before it can act (e.g. network access for a web search).
// When Required is false the remaining fields are empty and ignored.
type PermissionRequirement struct {
	Required          bool   `json:"required"`
	PermissionType    string `json:"permission_type,omitempty"`
	Reasoning         string `json:"reasoning,omitempty"`
	AutoGrantEligible bool   `json:"auto_grant_eligible"`
}

// RoutingDecision is the output of intent classification: the chosen agent,
// its confidence, runner-up candidates, and any permission requirement.
//
// Invariants: PrimaryConfidence and every alternative's ConfidenceScore lie
// in [0,1]; AlternativeAgents never contains PrimaryAgent.
type RoutingDecision struct {
	PrimaryAgent                 AgentType              `json:"primary_agent"`
	PrimaryConfidence            float64                `json:"primary_confidence"`
	AlternativeAgents            []AgentCapabilityMatch `json:"alternative_agents"`
	RoutingReasoning             string                 `json:"routing_reasoning"`
	RequiresContextPreservation  bool                   `json:"requires_context_preservation"`
	PermissionRequirement        PermissionRequirement  `json:"permission_requirement"`
	Domain                       string                 `json:"domain,omitempty"`
	ActionIntent                 ActionIntent           `json:"action_intent,omitempty"`
	SuggestedVisualization       string                 `json:"suggested_visualization,omitempty"`
}

// RoutingContext is the context bundle the intent router classifies against:
// recent messages, the conversation's shared memory, the last active agent,
// and any collaboration offer a previous turn left pending.
type RoutingContext struct {
	RecentMessages       []Message     `json:"recent_messages,omitempty"`
	SharedMemory         SharedMemory  `json:"shared_memory"`
	LastAgent            AgentType     `json:"last_agent,omitempty"`
	PendingCollaboration *AgentCapabilityMatch `json:"pending_collaboration,omitempty"`
	FilterTags           []string      `json:"filter_tags,omitempty"`
	FilterCategory       string        `json:"filter_category,omitempty"`
}

// ── Shared Memory ────────────────────────────────────────────

// AgentHandoff records one agent-to-agent transfer within a conversation.
type AgentHandoff struct {
	ID        string    `json:"id"`
	FromAgent AgentType `json:"from_agent"`
	ToAgent   AgentType `json:"to_agent"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Reason    string    `json:"reason"`
}

// SearchRecord is one entry of the append-only search history.
type SearchRecord struct {
	Query     string    `json:"query"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DataSufficiency tracks whether gathered material is enough to answer.
// Zero values mean "not assessed"; merges overwrite field-by-field.
type DataSufficiency struct {
	Sufficient    bool     `json:"sufficient"`
	Assessed      bool     `json:"assessed"`
	MissingTopics []string `json:"missing_topics,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// PendingOperation is an operation an agent proposed but has not executed.
type PendingOperation struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Description string         `json:"description"`
	Agent       AgentType      `json:"agent"`
	Params      map[string]any `json:"params,omitempty"`
}

// ApprovedOperation is the pending operation the user approved, if any.
type ApprovedOperation struct {
	OperationID string    `json:"operation_id"`
	ApprovedAt  time.Time `json:"approved_at"`
}

// SharedMemory is the mergeable cross-agent scratch state carried across a
// conversation's agent handoffs. Merge strategies are per-field; see the
// memory package. Unknown fields are preserved across (de)serialization in
// Extra so newer writers never lose data to older readers.
type SharedMemory struct {
	SearchResults        map[string]any       `json:"search_results,omitempty"`
	ConversationContext  map[string]any       `json:"conversation_context,omitempty"`
	AgentHandoffs        []AgentHandoff       `json:"agent_handoffs,omitempty"`
	DataSufficiency      DataSufficiency      `json:"data_sufficiency,omitempty"`
	ResearchFindings     map[string]string    `json:"research_findings,omitempty"`
	FormattedReports     map[string]string    `json:"formatted_reports,omitempty"`
	SearchHistory        []SearchRecord       `json:"search_history,omitempty"`
	LastAgent            AgentType            `json:"last_agent,omitempty"`
	PrimaryAgentSelected AgentType            `json:"primary_agent_selected,omitempty"`
	PendingOperations    []PendingOperation   `json:"pending_operations,omitempty"`
	ApprovedOperation    *ApprovedOperation   `json:"approved_operation,omitempty"`

	// Extra holds fields written by newer producers that this build does not
	// model. Preserved verbatim through marshal/unmarshal round-trips.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownMemoryFields are the JSON keys SharedMemory models natively.
// Keys outside this set land in Extra.
var knownMemoryFields = map[string]bool{
	"search_results":         true,
	"conversation_context":   true,
	"agent_handoffs":         true,
	"data_sufficiency":       true,
	"research_findings":      true,
	"formatted_reports":      true,
	"search_history":         true,
	"last_agent":             true,
	"primary_agent_selected": true,
	"pending_operations":     true,
	"approved_operation":     true,
}

// sharedMemoryAlias avoids recursing into the custom (Un)MarshalJSON.
type sharedMemoryAlias SharedMemory

// UnmarshalJSON decodes known fields into the struct and stashes everything
// else in Extra.
func (m *SharedMemory) UnmarshalJSON(data []byte) error {
	var alias sharedMemoryAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if knownMemoryFields[key] {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}

	*m = SharedMemory(alias)
	return nil
}

// MarshalJSON emits known fields plus any preserved Extra fields. A known
// field always wins over an Extra entry with the same key.
func (m SharedMemory) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(sharedMemoryAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for key, val := range m.Extra {
		if _, ok := merged[key]; !ok {
			merged[key] = val
		}
	}
	return json.Marshal(merged)
}

// ── Conversation State ───────────────────────────────────────

// TurnPhase is the state-machine phase of the current turn.
type TurnPhase string

const (
	PhaseIdle               TurnPhase = "idle"
	PhaseProcessing         TurnPhase = "processing"
	PhaseAwaitingPermission TurnPhase = "awaiting_permission"
	PhaseComplete           TurnPhase = "complete"
)

// Message is one conversational message (user or assistant).
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" | "assistant" | "system"
	Agent     AgentType `json:"agent,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PermissionRequest is a pending human-in-the-loop approval: the turn is
// suspended until the user approves, cancels, or sends a new query.
type PermissionRequest struct {
	ID             string    `json:"id"`
	PermissionType string    `json:"permission_type"`
	Agent          AgentType `json:"agent"`
	Query          string    `json:"query"`
	Reasoning      string    `json:"reasoning,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
}

// ConversationState is the durable snapshot of one conversation, keyed by
// thread id in the checkpoint store.
//
// Invariant: RequiresUserInput is true iff PendingPermission is set.
type ConversationState struct {
	UserID            string             `json:"user_id"`
	ConversationID    string             `json:"conversation_id"`
	Messages          []Message          `json:"messages"`
	ActiveAgent       AgentType          `json:"active_agent,omitempty"`
	SharedMemory      SharedMemory       `json:"shared_memory"`
	Phase             TurnPhase          `json:"phase"`
	RequiresUserInput bool               `json:"requires_user_input"`
	IsComplete        bool               `json:"is_complete"`
	ErrorState        string             `json:"error_state,omitempty"`
	ConversationTitle string             `json:"conversation_title,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	PendingPermission *PermissionRequest `json:"pending_permission,omitempty"`
}

// ── Citations ────────────────────────────────────────────────

// CitationType classifies the source kind of a citation.
type CitationType string

const (
	CitationWebpage  CitationType = "webpage"
	CitationDocument CitationType = "document"
	CitationBook     CitationType = "book"
)

// Citation is one numbered source reference. IDs are dense 1-based integers
// assigned in first-seen order within a single aggregation pass.
type Citation struct {
	ID      int          `json:"id"`
	Title   string       `json:"title"`
	Type    CitationType `json:"type"`
	URL     string       `json:"url,omitempty"`
	Author  string       `json:"author,omitempty"`
	Date    string       `json:"date,omitempty"`
	Excerpt string       `json:"excerpt,omitempty"`
}

// ToolResult is the raw output of one tool call, as returned by an agent.
// Structured fields are preferred when present; otherwise Text is scanned
// for URL-shaped substrings.
type ToolResult struct {
	Tool    string `json:"tool,omitempty"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Author  string `json:"author,omitempty"`
	Date    string `json:"date,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	Text    string `json:"text,omitempty"`
}

// ── Tag Filtering ────────────────────────────────────────────

// MatchConfidence classifies the overall strength of a tag detection pass.
type MatchConfidence string

const (
	MatchHigh   MatchConfidence = "high"
	MatchMedium MatchConfidence = "medium"
	MatchLow    MatchConfidence = "low"
	MatchNone   MatchConfidence = "none"
)

// MatchedPhrase records one accepted fuzzy match.
type MatchedPhrase struct {
	QueryPhrase  string  `json:"query_phrase"`
	MatchedValue string  `json:"matched_value"`
	Score        float64 `json:"score"`
}

// TagMatchResult is the output of tag/category detection over a query.
type TagMatchResult struct {
	FilterTags     []string        `json:"filter_tags"`
	FilterCategory string          `json:"filter_category,omitempty"`
	Confidence     MatchConfidence `json:"confidence"`
	MatchedPhrases []MatchedPhrase `json:"matched_phrases,omitempty"`
	ShouldFilter   bool            `json:"should_filter"`
}

// ── Turn Results ─────────────────────────────────────────────

// AgentResult is what an executed agent returns to the core.
type AgentResult struct {
	Response            string             `json:"response"`
	UpdatedSharedMemory *SharedMemory      `json:"updated_shared_memory,omitempty"`
	ToolResults         []ToolResult       `json:"tool_results,omitempty"`
	RequiresPermission  *PermissionRequest `json:"requires_permission,omitempty"`
}

// TurnResult is the outbound result of one processed (or resumed) turn.
type TurnResult struct {
	Success          bool             `json:"success"`
	Answer           string           `json:"answer"`
	DelegatedAgent   AgentType        `json:"delegated_agent"`
	RoutingDecision  *RoutingDecision `json:"routing_decision,omitempty"`
	Citations        []Citation       `json:"citations,omitempty"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
	MessageID        string           `json:"message_id,omitempty"`
	Cancelled        bool             `json:"cancelled,omitempty"`
	AwaitingApproval bool             `json:"awaiting_approval,omitempty"`
}
