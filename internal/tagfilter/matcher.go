// Package tagfilter detects tag and category references in a user query so
// retrieval can be scoped to the matching documents.
//
// Detection runs in two passes: direct variant matching against the known
// tag list (hyphen/underscore/space forms plus "{tag} documents/files/docs"
// shorthands), then a regex fallback that extracts filter-ish phrases
// ("from my X", "tagged as X", "category X") and resolves them fuzzily.
package tagfilter

import (
	"regexp"
	"sort"
	"strings"

	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

const (
	// fuzzyThreshold is the minimum score for an extracted phrase to be
	// accepted as a tag match.
	fuzzyThreshold = 0.75

	// categoryThreshold is looser: categories are a single coarse bucket,
	// so a weaker match still usefully narrows retrieval. Matches accepted
	// in [categoryThreshold, fuzzyThreshold) grade the result "low".
	categoryThreshold = 0.60

	highConfidence = 0.85
)

// phrasePatterns extract candidate filter phrases when no known tag appears
// verbatim in the query.
var phrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bfrom my ([a-z0-9][a-z0-9 _-]{1,40}?)(?:\s+(?:documents|files|docs|notes))?\b`),
	regexp.MustCompile(`(?i)\btagged (?:as |with )?([a-z0-9][a-z0-9 _-]{1,40})\b`),
	regexp.MustCompile(`(?i)\bcategory:?\s+([a-z0-9][a-z0-9 _-]{1,40})\b`),
	regexp.MustCompile(`(?i)\bin (?:the )?([a-z0-9][a-z0-9 _-]{1,40}?) (?:category|collection)\b`),
}

// Detect scans query for references to known tags and categories.
func Detect(query string, knownTags, knownCategories []string) models.TagMatchResult {
	result := models.TagMatchResult{FilterTags: []string{}}
	q := strings.ToLower(query)

	bestScore := 0.0
	seen := make(map[string]bool)

	// Pass 1: direct variant matching. Any hit records the canonical tag.
	for _, tag := range knownTags {
		for _, variant := range variants(tag) {
			if containsPhrase(q, variant) {
				if !seen[tag] {
					seen[tag] = true
					result.FilterTags = append(result.FilterTags, tag)
					result.MatchedPhrases = append(result.MatchedPhrases, models.MatchedPhrase{
						QueryPhrase:  variant,
						MatchedValue: tag,
						Score:        1.0,
					})
				}
				bestScore = 1.0
				break
			}
		}
	}

	// Direct category mention.
	for _, cat := range knownCategories {
		if containsPhrase(q, strings.ToLower(cat)) && result.FilterCategory == "" {
			result.FilterCategory = cat
			result.MatchedPhrases = append(result.MatchedPhrases, models.MatchedPhrase{
				QueryPhrase:  strings.ToLower(cat),
				MatchedValue: cat,
				Score:        1.0,
			})
			if bestScore < 1.0 {
				bestScore = 1.0
			}
		}
	}

	// Pass 2: regex fallback for phrases that name a filter without using a
	// known tag verbatim. Each phrase is resolved fuzzily.
	if len(result.FilterTags) == 0 && result.FilterCategory == "" {
		for _, phrase := range extractPhrases(query) {
			if tag, score := resolve(phrase, knownTags); score >= fuzzyThreshold && !seen[tag] {
				seen[tag] = true
				result.FilterTags = append(result.FilterTags, tag)
				result.MatchedPhrases = append(result.MatchedPhrases, models.MatchedPhrase{
					QueryPhrase:  phrase,
					MatchedValue: tag,
					Score:        score,
				})
				if score > bestScore {
					bestScore = score
				}
				continue
			}
			if cat, score := resolve(phrase, knownCategories); score >= categoryThreshold && result.FilterCategory == "" {
				result.FilterCategory = cat
				result.MatchedPhrases = append(result.MatchedPhrases, models.MatchedPhrase{
					QueryPhrase:  phrase,
					MatchedValue: cat,
					Score:        score,
				})
				if score > bestScore {
					bestScore = score
				}
			}
		}
	}

	result.ShouldFilter = len(result.FilterTags) > 0 || result.FilterCategory != ""
	switch {
	case !result.ShouldFilter:
		result.Confidence = models.MatchNone
	case bestScore >= highConfidence:
		result.Confidence = models.MatchHigh
	case bestScore >= fuzzyThreshold:
		result.Confidence = models.MatchMedium
	default:
		result.Confidence = models.MatchLow
	}
	return result
}

// variants generates the lowercase morphological forms a tag may take in
// natural phrasing: separator swaps plus "{stem} documents/files/docs".
func variants(tag string) []string {
	lower := strings.ToLower(tag)
	spaced := strings.NewReplacer("-", " ", "_", " ").Replace(lower)

	set := map[string]bool{
		lower:                                true,
		spaced:                               true,
		strings.ReplaceAll(spaced, " ", "-"): true,
		strings.ReplaceAll(spaced, " ", "_"): true,
	}

	// "founding-documents" is commonly phrased "founding docs" or
	// "founding files": derive the stem and append the noun forms.
	tokens := strings.Fields(spaced)
	stem := spaced
	if len(tokens) > 1 && isDocNoun(tokens[len(tokens)-1]) {
		stem = strings.Join(tokens[:len(tokens)-1], " ")
	}
	for _, noun := range []string{"documents", "files", "docs"} {
		set[stem+" "+noun] = true
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	// Longest first so "founding documents" wins over "founding docs".
	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func isDocNoun(s string) bool {
	switch s {
	case "documents", "document", "files", "file", "docs", "doc", "notes":
		return true
	}
	return false
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// extractPhrases pulls candidate filter phrases out of the query.
func extractPhrases(query string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range phrasePatterns {
		for _, m := range re.FindAllStringSubmatch(query, -1) {
			phrase := strings.TrimSpace(strings.ToLower(m[1]))
			if phrase != "" && !seen[phrase] {
				seen[phrase] = true
				out = append(out, phrase)
			}
		}
	}
	return out
}

// resolve scores a phrase against each known value and returns the best.
// Four signals are combined by taking the maximum: exact equality (1.0),
// substring containment (0.9), token overlap (0.7 plus a bonus up to 0.9),
// and normalized edit distance.
func resolve(phrase string, known []string) (string, float64) {
	best, bestScore := "", 0.0
	for _, candidate := range known {
		if s := score(phrase, strings.ToLower(candidate)); s > bestScore {
			best, bestScore = candidate, s
		}
	}
	return best, bestScore
}

func score(phrase, candidate string) float64 {
	normPhrase := strings.NewReplacer("-", " ", "_", " ").Replace(phrase)
	normCand := strings.NewReplacer("-", " ", "_", " ").Replace(candidate)

	if normPhrase == normCand {
		return 1.0
	}

	best := 0.0
	if strings.Contains(normCand, normPhrase) || strings.Contains(normPhrase, normCand) {
		best = 0.9
	}

	if s := tokenOverlap(normPhrase, normCand); s > best {
		best = s
	}
	if s := editRatio(normPhrase, normCand); s > best {
		best = s
	}
	return best
}

// tokenOverlap scores shared tokens: 0.7 base plus up to 0.2 bonus by
// overlap ratio. Zero when no tokens are shared.
func tokenOverlap(a, b string) float64 {
	aTokens := strings.Fields(a)
	bSet := make(map[string]bool)
	for _, t := range strings.Fields(b) {
		bSet[t] = true
	}
	if len(aTokens) == 0 || len(bSet) == 0 {
		return 0
	}

	shared := 0
	for _, t := range aTokens {
		if bSet[t] {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}

	union := len(bSet)
	for _, t := range aTokens {
		if !bSet[t] {
			union++
		}
	}
	return 0.7 + 0.2*(float64(shared)/float64(union))
}

// editRatio is 1 - levenshtein(a,b)/max(len(a),len(b)).
func editRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
