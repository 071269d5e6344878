// Package citations reconciles source references drawn from many independent
// tool calls into a single numbered list, and rewrites the findings text to
// reference the numbers.
//
// Numbering is stable within one Aggregate call (first-seen order across the
// tool results); there is no stability guarantee across turns, and each turn
// re-aggregates from scratch.
package citations

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/adamsih300u/bastion-sub010/pkg/models"
	"github.com/rs/zerolog/log"
)

// urlRegex matches URL-shaped substrings in unstructured tool output.
var urlRegex = regexp.MustCompile(`https?://[^\s)\]}>"']+`)

// Aggregate extracts candidate citations from tool results, deduplicates
// them, assigns dense 1-based numbers in first-seen order, and rewrites
// findingsText so source URLs and titles carry "(N)" markers.
//
// A tool result that yields no usable citation is skipped; it never fails
// the turn.
func Aggregate(findingsText string, toolResults []models.ToolResult) (string, []models.Citation) {
	var citations []models.Citation
	seen := make(map[string]int) // dedup key → citation index

	add := func(c models.Citation) {
		key := c.URL
		if key == "" {
			key = c.Title
		}
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		c.ID = len(citations) + 1
		seen[key] = len(citations)
		citations = append(citations, c)
	}

	for _, tr := range toolResults {
		for _, c := range extract(tr) {
			add(c)
		}
	}

	return rewrite(findingsText, citations), citations
}

// extract pulls citation candidates out of one tool result. Structured
// fields are preferred; unstructured text is scanned for URLs.
func extract(tr models.ToolResult) []models.Citation {
	if tr.Title != "" || tr.URL != "" {
		c := models.Citation{
			Title:   tr.Title,
			Type:    classify(tr),
			URL:     tr.URL,
			Author:  tr.Author,
			Date:    tr.Date,
			Excerpt: tr.Excerpt,
		}
		if c.Title == "" {
			c.Title = synthesizeTitle(tr.URL)
		}
		return []models.Citation{c}
	}

	// Unstructured: synthesize a minimal citation per URL found.
	var out []models.Citation
	for _, raw := range urlRegex.FindAllString(tr.Text, -1) {
		out = append(out, models.Citation{
			Title: synthesizeTitle(raw),
			Type:  models.CitationWebpage,
			URL:   raw,
		})
	}
	return out
}

func classify(tr models.ToolResult) models.CitationType {
	switch {
	case tr.URL != "":
		return models.CitationWebpage
	case tr.Author != "" && tr.Date != "":
		return models.CitationBook
	default:
		return models.CitationDocument
	}
}

// synthesizeTitle builds a fallback title from a URL's host.
func synthesizeTitle(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		log.Debug().Str("url", raw).Msg("Unparseable source URL, using generic title")
		return "Web source"
	}
	return fmt.Sprintf("Web source from %s", strings.TrimPrefix(parsed.Host, "www."))
}

// rewrite replaces every literal occurrence of each citation's URL with
// "(N)". For citations whose URL does not appear in the text, the first
// case-insensitive occurrence of the title gets " (N)" appended, once per
// title, not at every occurrence.
func rewrite(text string, citations []models.Citation) string {
	for _, c := range citations {
		marker := fmt.Sprintf("(%d)", c.ID)

		if c.URL != "" && strings.Contains(text, c.URL) {
			text = strings.ReplaceAll(text, c.URL, marker)
			continue
		}

		if c.Title == "" {
			continue
		}
		idx := strings.Index(strings.ToLower(text), strings.ToLower(c.Title))
		if idx < 0 {
			continue
		}
		end := idx + len(c.Title)
		text = text[:end] + " " + marker + text[end:]
	}
	return text
}
