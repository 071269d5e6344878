package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adamsih300u/bastion-sub010/internal/agents"
	"github.com/adamsih300u/bastion-sub010/internal/api/handlers"
	"github.com/adamsih300u/bastion-sub010/internal/checkpoint"
	"github.com/adamsih300u/bastion-sub010/internal/config"
	"github.com/adamsih300u/bastion-sub010/internal/conversation"
	"github.com/adamsih300u/bastion-sub010/internal/intent"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

func newTestServer(t *testing.T, rules map[models.AgentType]string) *httptest.Server {
	t.Helper()

	checkpoints := checkpoint.NewManager(context.Background(), checkpoint.ManagerConfig{})
	t.Cleanup(checkpoints.Cleanup)

	router := intent.NewRouter(intent.DefaultProfiles(), intent.KeywordClassifier{}, intent.NewPermissionPolicy(rules))
	registry := agents.NewRegistry(agents.NewChatAgent(nil, agents.DefaultSettings()))
	machine := conversation.NewMachine(checkpoints, router, registry, agents.FirstWordsTitle{}, conversation.Config{})

	h := handlers.New(machine, registry)
	srv := httptest.NewServer(NewRouter(config.Load(), h, checkpoints))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, user, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestTurnEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := doJSON(t, "POST", srv.URL+"/api/v1/conversations/c1/turns", "alice",
		`{"message": "hello there"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["answer"] == "" {
		t.Error("empty answer")
	}
	if body["delegated_agent"] != "chat" {
		t.Errorf("delegated_agent = %v", body["delegated_agent"])
	}
}

func TestTurnEndpoint_BadRequest(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := doJSON(t, "POST", srv.URL+"/api/v1/conversations/c1/turns", "alice", `{nope`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, "POST", srv.URL+"/api/v1/conversations/c1/turns", "alice", `{"message": "  "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank message: status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusEndpoint_UserScoping(t *testing.T) {
	srv := newTestServer(t, nil)

	if resp, _ := doJSON(t, "POST", srv.URL+"/api/v1/conversations/c1/turns", "alice",
		`{"message": "hello"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("setup turn failed: %d", resp.StatusCode)
	}

	resp, body := doJSON(t, "GET", srv.URL+"/api/v1/conversations/c1/status", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	state, ok := body["state"].(map[string]any)
	if !ok || state["user_id"] != "alice" {
		t.Errorf("state = %v", body["state"])
	}

	// Same conversation id under another user is a different, empty thread.
	resp, _ = doJSON(t, "GET", srv.URL+"/api/v1/conversations/c1/status", "bob", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-user status = %d, want 404", resp.StatusCode)
	}

	// Naming alice's thread explicitly is an isolation violation.
	resp, _ = doJSON(t, "GET", srv.URL+"/api/v1/conversations/alice:c1/status", "bob", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign thread status = %d, want 403", resp.StatusCode)
	}
}

func TestPermissionFlowOverHTTP(t *testing.T) {
	// Empty rule table: network-needing agents always ask.
	srv := newTestServer(t, map[models.AgentType]string{})

	resp, body := doJSON(t, "POST", srv.URL+"/api/v1/conversations/c1/turns", "alice",
		`{"message": "search the web for the latest go release news"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["awaiting_approval"] != true {
		t.Fatalf("awaiting_approval = %v, body = %v", body["awaiting_approval"], body)
	}

	resp, body = doJSON(t, "POST", srv.URL+"/api/v1/conversations/c1/resume", "alice",
		`{"response": "yes"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resume status = %d, body = %v", resp.StatusCode, body)
	}
	if body["success"] != true || body["awaiting_approval"] == true {
		t.Errorf("resume body = %v", body)
	}
}

func TestResumeEndpoint_NoPending(t *testing.T) {
	srv := newTestServer(t, nil)

	if resp, _ := doJSON(t, "POST", srv.URL+"/api/v1/conversations/c1/turns", "alice",
		`{"message": "hello"}`); resp.StatusCode != http.StatusOK {
		t.Fatal("setup turn failed")
	}

	resp, _ := doJSON(t, "POST", srv.URL+"/api/v1/conversations/c1/resume", "alice", `{"response": "yes"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := doJSON(t, "GET", srv.URL+"/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	// No DATABASE_URL in tests, so checkpoints run in-process.
	if body["using_fallback"] != true {
		t.Errorf("using_fallback = %v, want true", body["using_fallback"])
	}
}

func TestAgentsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := doJSON(t, "GET", srv.URL+"/api/v1/agents", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	list, ok := body["agents"].([]any)
	if !ok || len(list) != 1 || list[0] != "chat" {
		t.Errorf("agents = %v", body["agents"])
	}
}
