package intent_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/adamsih300u/bastion-sub010/internal/intent"
	"github.com/adamsih300u/bastion-sub010/pkg/contracts"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// failingClassifier simulates a broken classification backend.
type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, []models.Message) (*contracts.Classification, error) {
	return nil, errors.New("backend unavailable")
}

// countingClassifier records whether the backend was consulted.
type countingClassifier struct {
	inner contracts.Classifier
	calls int
}

func (c *countingClassifier) Classify(ctx context.Context, msg string, recent []models.Message) (*contracts.Classification, error) {
	c.calls++
	return c.inner.Classify(ctx, msg, recent)
}

func newRouter(cls contracts.Classifier) *intent.Router {
	return intent.NewRouter(intent.DefaultProfiles(), cls, intent.NewPermissionPolicy(intent.DefaultPolicyRules))
}

func TestClassify_FallbackNeverRaises(t *testing.T) {
	r := newRouter(failingClassifier{})

	decision := r.Classify(context.Background(), "", models.RoutingContext{})

	if decision.PrimaryAgent != models.AgentChat {
		t.Errorf("primary = %q, want fallback %q", decision.PrimaryAgent, models.AgentChat)
	}
	if decision.PrimaryConfidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", decision.PrimaryConfidence)
	}
	if !strings.Contains(decision.RoutingReasoning, "classification_failed") {
		t.Errorf("reasoning = %q, want classification_failed", decision.RoutingReasoning)
	}
}

func TestClassify_NilClassifierFallsBack(t *testing.T) {
	r := intent.NewRouter(intent.DefaultProfiles(), nil, nil)

	decision := r.Classify(context.Background(), "hello", models.RoutingContext{})
	if decision.PrimaryAgent != models.AgentChat {
		t.Errorf("primary = %q, want %q", decision.PrimaryAgent, models.AgentChat)
	}
}

func TestClassify_ConfidenceBounds(t *testing.T) {
	r := newRouter(intent.KeywordClassifier{})

	messages := []string{
		"search for the latest news on fusion energy",
		"edit chapter three of my story to fix the dialogue",
		"graph chart plot stats statistics data visualize table",
		"hello",
	}
	for _, msg := range messages {
		d := r.Classify(context.Background(), msg, models.RoutingContext{})
		if d.PrimaryConfidence < 0 || d.PrimaryConfidence > 1 {
			t.Errorf("%q: confidence %v out of [0,1]", msg, d.PrimaryConfidence)
		}
		for _, alt := range d.AlternativeAgents {
			if alt.ConfidenceScore < 0 || alt.ConfidenceScore > 1 {
				t.Errorf("%q: alternative %q confidence %v out of [0,1]", msg, alt.AgentType, alt.ConfidenceScore)
			}
			if alt.AgentType == d.PrimaryAgent {
				t.Errorf("%q: alternatives contain primary agent %q", msg, d.PrimaryAgent)
			}
		}
	}
}

func TestClassify_ResearchWithPermission(t *testing.T) {
	r := newRouter(intent.KeywordClassifier{})

	d := r.Classify(context.Background(), "search for the latest news on fusion energy", models.RoutingContext{})

	if d.PrimaryAgent != models.AgentResearch {
		t.Fatalf("primary = %q, want %q", d.PrimaryAgent, models.AgentResearch)
	}
	if !d.PermissionRequirement.Required {
		t.Fatal("permission requirement not set for network-bound research")
	}
	if d.PermissionRequirement.PermissionType != "web_access" {
		t.Errorf("permission type = %q, want web_access", d.PermissionRequirement.PermissionType)
	}
	// Plain queries auto-grant per the default policy table.
	if !d.PermissionRequirement.AutoGrantEligible {
		t.Error("query-intent research should be auto-grant eligible")
	}
}

func TestClassify_FictionEditing(t *testing.T) {
	r := newRouter(intent.KeywordClassifier{})

	d := r.Classify(context.Background(), "edit chapter three of my story to fix the dialogue", models.RoutingContext{})
	if d.PrimaryAgent != models.AgentFiction {
		t.Errorf("primary = %q, want %q", d.PrimaryAgent, models.AgentFiction)
	}
	if d.PermissionRequirement.Required {
		t.Error("fiction editing should not require network permission")
	}
}

func TestClassify_StickinessTieBreak(t *testing.T) {
	r := newRouter(intent.KeywordClassifier{})

	// "tell me more about that" scores chat and research within epsilon of
	// each other; with research as the last active agent, continuity wins.
	d := r.Classify(context.Background(), "tell me more about that", models.RoutingContext{
		LastAgent: models.AgentResearch,
	})
	if d.PrimaryAgent != models.AgentResearch {
		t.Errorf("primary = %q, want sticky %q", d.PrimaryAgent, models.AgentResearch)
	}

	// Without a last agent the higher scorer wins.
	d = r.Classify(context.Background(), "tell me more about that", models.RoutingContext{})
	if d.PrimaryAgent != models.AgentChat {
		t.Errorf("primary = %q, want %q", d.PrimaryAgent, models.AgentChat)
	}
}

func TestClassify_ChartFastPath(t *testing.T) {
	cls := &countingClassifier{inner: intent.KeywordClassifier{}}
	r := newRouter(cls)

	input := "Can you graph those stats?"
	d := r.Classify(context.Background(), input, models.RoutingContext{
		LastAgent: models.AgentResearch,
		SharedMemory: models.SharedMemory{
			ResearchFindings: map[string]string{"population": "census numbers ..."},
		},
	})

	if cls.calls != 0 {
		t.Errorf("classifier called %d times, want 0 (fast path)", cls.calls)
	}
	if d.PrimaryAgent != models.AgentData {
		t.Errorf("primary = %q, want %q", d.PrimaryAgent, models.AgentData)
	}
	if d.SuggestedVisualization != "chart" {
		t.Errorf("suggested visualization = %q, want chart", d.SuggestedVisualization)
	}
	if !strings.Contains(d.RoutingReasoning, input) {
		t.Errorf("reasoning %q does not contain the literal input", d.RoutingReasoning)
	}
}

func TestClassify_ChartWithoutDataUsesPipeline(t *testing.T) {
	cls := &countingClassifier{inner: intent.KeywordClassifier{}}
	r := newRouter(cls)

	// No data in shared memory, so the fast path must not fire.
	r.Classify(context.Background(), "graph something for me", models.RoutingContext{})
	if cls.calls != 1 {
		t.Errorf("classifier called %d times, want 1", cls.calls)
	}
}

func TestPermissionPolicy_InvalidRuleNeverGrants(t *testing.T) {
	p := intent.NewPermissionPolicy(map[models.AgentType]string{
		models.AgentResearch: "this is not an expression ===",
	})
	if p.AutoGrantEligible(models.AgentResearch, "research", models.IntentQuery) {
		t.Error("invalid rule must not auto-grant")
	}
}
