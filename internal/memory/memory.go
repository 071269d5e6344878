// Package memory implements the mergeable cross-agent shared memory.
//
// SharedMemory survives agent handoffs within one conversation; each agent
// returns an updated copy and the state machine folds it back into the
// checkpointed state with Merge. Merge strategies are per-field:
//
//   - append-only lists (agent_handoffs, search_history): base then update,
//     order preserved, no deduplication
//   - key-addressed maps (research_findings, formatted_reports): key union,
//     update wins on collision
//   - shallow maps (search_results, conversation_context): shallow overwrite
//   - scalars and data_sufficiency: update wins when non-default
//
// Merge does not deduplicate by value, so callers merge each logical update
// exactly once. The state machine guarantees this by merging one agent
// result per turn under the per-thread lock.
package memory

import (
	"encoding/json"

	"github.com/adamsih300u/bastion-sub010/pkg/models"
	"github.com/rs/zerolog/log"
)

// Merge combines base and update field by field and returns the result.
// Neither input is mutated.
func Merge(base, update models.SharedMemory) models.SharedMemory {
	out := base

	// Append-only lists: concatenate, base first.
	if len(update.AgentHandoffs) > 0 {
		out.AgentHandoffs = append(append([]models.AgentHandoff{}, base.AgentHandoffs...), update.AgentHandoffs...)
	}
	if len(update.SearchHistory) > 0 {
		out.SearchHistory = append(append([]models.SearchRecord{}, base.SearchHistory...), update.SearchHistory...)
	}

	// Key-addressed maps: union, update wins per key.
	out.ResearchFindings = mergeStringMap(base.ResearchFindings, update.ResearchFindings)
	out.FormattedReports = mergeStringMap(base.FormattedReports, update.FormattedReports)

	// Shallow maps: keys present in update replace those in base.
	out.SearchResults = mergeAnyMap(base.SearchResults, update.SearchResults)
	out.ConversationContext = mergeAnyMap(base.ConversationContext, update.ConversationContext)

	// Scalars: update wins when set.
	if update.LastAgent != "" {
		out.LastAgent = update.LastAgent
	}
	if update.PrimaryAgentSelected != "" {
		out.PrimaryAgentSelected = update.PrimaryAgentSelected
	}

	// DataSufficiency: field-overwrite once the update has been assessed.
	if update.DataSufficiency.Assessed {
		out.DataSufficiency = update.DataSufficiency
	}

	// Pending operations replace wholesale: an update carries the full
	// current proposal set, not a delta.
	if update.PendingOperations != nil {
		out.PendingOperations = update.PendingOperations
	}
	if update.ApprovedOperation != nil {
		out.ApprovedOperation = update.ApprovedOperation
	}

	// Forward-compat extras: update wins per key.
	if len(update.Extra) > 0 {
		merged := make(map[string]json.RawMessage, len(base.Extra)+len(update.Extra))
		for k, v := range base.Extra {
			merged[k] = v
		}
		for k, v := range update.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}

	return out
}

func mergeStringMap(base, update map[string]string) map[string]string {
	if len(update) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

func mergeAnyMap(base, update map[string]any) map[string]any {
	if len(update) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

// Validate constructs a SharedMemory from a raw decoded payload. It never
// fails: fields that do not parse are dropped (and logged) while every field
// that does parse is kept, so a turn can always proceed even with partially
// corrupt persisted state.
func Validate(raw map[string]any) models.SharedMemory {
	var out models.SharedMemory
	if raw == nil {
		return out
	}

	extra := make(map[string]json.RawMessage)
	for key, val := range raw {
		data, err := json.Marshal(val)
		if err != nil {
			log.Warn().Str("field", key).Err(err).Msg("Dropping unencodable shared memory field")
			continue
		}

		var fieldErr error
		switch key {
		case "search_results":
			fieldErr = json.Unmarshal(data, &out.SearchResults)
		case "conversation_context":
			fieldErr = json.Unmarshal(data, &out.ConversationContext)
		case "agent_handoffs":
			fieldErr = json.Unmarshal(data, &out.AgentHandoffs)
		case "data_sufficiency":
			fieldErr = json.Unmarshal(data, &out.DataSufficiency)
		case "research_findings":
			fieldErr = json.Unmarshal(data, &out.ResearchFindings)
		case "formatted_reports":
			fieldErr = json.Unmarshal(data, &out.FormattedReports)
		case "search_history":
			fieldErr = json.Unmarshal(data, &out.SearchHistory)
		case "last_agent":
			fieldErr = json.Unmarshal(data, &out.LastAgent)
		case "primary_agent_selected":
			fieldErr = json.Unmarshal(data, &out.PrimaryAgentSelected)
		case "pending_operations":
			fieldErr = json.Unmarshal(data, &out.PendingOperations)
		case "approved_operation":
			fieldErr = json.Unmarshal(data, &out.ApprovedOperation)
		default:
			// Unknown field, preserved for forward compatibility.
			extra[key] = data
			continue
		}

		if fieldErr != nil {
			log.Warn().Str("field", key).Err(fieldErr).Msg("Dropping malformed shared memory field")
		}
	}

	if len(extra) > 0 {
		out.Extra = extra
	}
	return out
}
