package intent

import (
	"context"
	"strings"

	"github.com/adamsih300u/bastion-sub010/pkg/contracts"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// KeywordClassifier is the built-in classification backend: keyword tables
// for domain detection and verb heuristics for action intent. Deployments
// that want an LLM classifier swap in their own contracts.Classifier; the
// router treats both identically.
type KeywordClassifier struct{}

// Ordered tables so ties resolve the same way on every run.
var domainKeywords = []struct {
	domain string
	words  []string
}{
	{"research", []string{"research", "search", "find", "sources", "investigate", "latest", "news", "look up"}},
	{"data", []string{"graph", "chart", "plot", "stats", "statistics", "dataset", "visualize", "table"}},
	{"fiction", []string{"story", "chapter", "character", "prose", "manuscript", "dialogue", "novel"}},
	{"wargaming", []string{"wargame", "scenario", "faction", "campaign", "simulate", "order of battle"}},
}

var actionKeywords = []struct {
	action models.ActionIntent
	words  []string
}{
	{models.IntentModification, []string{"edit", "change", "revise", "update", "fix", "rewrite"}},
	{models.IntentGeneration, []string{"write", "create", "draft", "generate", "compose", "make"}},
	{models.IntentAnalysis, []string{"analyze", "compare", "evaluate", "assess", "graph", "chart", "summarize"}},
	{models.IntentManagement, []string{"organize", "schedule", "manage", "track", "list my"}},
	{models.IntentObservation, []string{"i think", "i noticed", "fyi", "just so you know"}},
}

// Classify implements contracts.Classifier. It never returns an error; a
// message with no signal classifies as a general query.
func (KeywordClassifier) Classify(_ context.Context, message string, _ []models.Message) (*contracts.Classification, error) {
	lower := strings.ToLower(message)

	domain := "general"
	domainHits := 0
	for _, entry := range domainKeywords {
		if hits := countHits(lower, entry.words); hits > domainHits {
			domain, domainHits = entry.domain, hits
		}
	}

	action := models.IntentQuery
	actionHits := 0
	for _, entry := range actionKeywords {
		if hits := countHits(lower, entry.words); hits > actionHits {
			action, actionHits = entry.action, hits
		}
	}

	confidence := 0.5
	if domainHits > 0 {
		confidence += 0.2
	}
	if actionHits > 0 {
		confidence += 0.2
	}

	return &contracts.Classification{
		Domain:       domain,
		ActionIntent: action,
		Confidence:   confidence,
	}, nil
}

func countHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
