// Package handlers implements the HTTP handlers for the conversation API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/adamsih300u/bastion-sub010/internal/api/middleware"
	"github.com/adamsih300u/bastion-sub010/internal/checkpoint"
	"github.com/adamsih300u/bastion-sub010/internal/conversation"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// AgentLister exposes the registered agent types.
type AgentLister interface {
	Types() []models.AgentType
}

// Handlers bundles the services behind the HTTP API.
type Handlers struct {
	machine *conversation.Machine
	agents  AgentLister
}

// New creates the handler set.
func New(machine *conversation.Machine, agents AgentLister) *Handlers {
	return &Handlers{machine: machine, agents: agents}
}

type turnRequest struct {
	Message string `json:"message"`
}

type resumeRequest struct {
	Response string `json:"response"`
}

// ProcessTurn handles POST /api/v1/conversations/{conversationID}/turns.
func (h *Handlers) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	userID := middleware.UserID(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	result, err := h.machine.ProcessTurn(r.Context(), userID, conversationID, req.Message)
	if err != nil {
		writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ResumeTurn handles POST /api/v1/conversations/{conversationID}/resume.
func (h *Handlers) ResumeTurn(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID := middleware.UserID(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	result, err := h.machine.ResumeTurn(r.Context(), userID, conversationID, req.Response)
	if err != nil {
		writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetStatus handles GET /api/v1/conversations/{conversationID}/status.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	status, err := h.machine.GetStatus(r.Context(), userID, conversationID)
	if err != nil {
		writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ListAgents handles GET /api/v1/agents.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": h.agents.Types()})
}

func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case conversation.IsThreadIsolation(err):
		writeError(w, http.StatusForbidden, "conversation belongs to another user")
	case checkpoint.IsNotFound(err):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, conversation.ErrNoPendingTurn):
		writeError(w, http.StatusConflict, "no pending permission to resume")
	default:
		log.Error().Err(err).Msg("api: turn failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
