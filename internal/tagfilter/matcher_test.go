package tagfilter_test

import (
	"testing"

	"github.com/adamsih300u/bastion-sub010/internal/tagfilter"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

func TestDetect_DirectVariantMatch(t *testing.T) {
	result := tagfilter.Detect("show me my founding docs", []string{"founding-documents"}, nil)

	if len(result.FilterTags) != 1 || result.FilterTags[0] != "founding-documents" {
		t.Fatalf("filter tags = %v, want [founding-documents]", result.FilterTags)
	}
	if result.Confidence != models.MatchHigh {
		t.Errorf("confidence = %q, want %q (direct variant match, not fuzzy)", result.Confidence, models.MatchHigh)
	}
	if !result.ShouldFilter {
		t.Error("should_filter = false, want true")
	}
}

func TestDetect_CanonicalTagReturned(t *testing.T) {
	// The variant matched, but the canonical tag is what comes back.
	result := tagfilter.Detect("anything tagged as meeting notes", []string{"meeting_notes"}, nil)

	if len(result.FilterTags) != 1 || result.FilterTags[0] != "meeting_notes" {
		t.Fatalf("filter tags = %v, want canonical [meeting_notes]", result.FilterTags)
	}
}

func TestDetect_NoMatch(t *testing.T) {
	result := tagfilter.Detect("what is the weather today", []string{"founding-documents"}, []string{"legal"})

	if result.ShouldFilter {
		t.Errorf("should_filter = true for unrelated query, tags=%v cat=%q", result.FilterTags, result.FilterCategory)
	}
	if result.Confidence != models.MatchNone {
		t.Errorf("confidence = %q, want %q", result.Confidence, models.MatchNone)
	}
}

func TestDetect_FuzzyPhraseResolution(t *testing.T) {
	// "from my project plans" does not contain the tag verbatim; the regex
	// fallback extracts "project plans" and fuzzy matching resolves it.
	result := tagfilter.Detect("summarize everything from my project plans", []string{"project-planning"}, nil)

	if len(result.FilterTags) != 1 || result.FilterTags[0] != "project-planning" {
		t.Fatalf("filter tags = %v, want [project-planning]", result.FilterTags)
	}
	if result.Confidence == models.MatchNone {
		t.Error("confidence = none, want an accepted match")
	}
	if len(result.MatchedPhrases) == 0 {
		t.Fatal("matched phrases empty, want the fuzzy match recorded")
	}
	if result.MatchedPhrases[0].Score < 0.75 {
		t.Errorf("accepted score = %v, want >= 0.75", result.MatchedPhrases[0].Score)
	}
}

func TestDetect_CategoryDetection(t *testing.T) {
	result := tagfilter.Detect("search the legal category for precedent", nil, []string{"legal", "finance"})

	if result.FilterCategory != "legal" {
		t.Errorf("filter category = %q, want %q", result.FilterCategory, "legal")
	}
	if !result.ShouldFilter {
		t.Error("should_filter = false, want true")
	}
}

func TestDetect_SubstringNotWordBoundary(t *testing.T) {
	// "art" must not match inside "start".
	result := tagfilter.Detect("start the report", []string{"art"}, nil)
	if result.ShouldFilter {
		t.Errorf("matched %v inside a larger word", result.FilterTags)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		result := tagfilter.Detect("show me my founding docs", []string{"founding-documents"}, nil)
		if len(result.FilterTags) != 1 || result.Confidence != models.MatchHigh {
			t.Fatalf("run %d: tags=%v confidence=%q, detection must be deterministic", i, result.FilterTags, result.Confidence)
		}
	}
}
