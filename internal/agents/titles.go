package agents

import (
	"context"
	"strings"
	"unicode"

	"github.com/adamsih300u/bastion-sub010/pkg/contracts"
)

const titleMaxWords = 6

// FirstWordsTitle derives a conversation title from the opening message:
// leading question words are dropped, the first few words are kept, and the
// result is title-cased. Zero external calls, so it never delays a turn.
type FirstWordsTitle struct{}

var titleStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "please": true, "hey": true,
	"hi": true, "hello": true, "can": true, "you": true, "could": true,
	"would": true, "me": true, "tell": true, "about": true,
}

func (FirstWordsTitle) Generate(_ context.Context, firstMessage string) (string, error) {
	words := strings.Fields(firstMessage)
	kept := make([]string, 0, titleMaxWords)
	for _, w := range words {
		trimmed := strings.TrimFunc(w, unicode.IsPunct)
		if trimmed == "" || titleStopWords[strings.ToLower(trimmed)] {
			continue
		}
		kept = append(kept, capitalize(trimmed))
		if len(kept) == titleMaxWords {
			break
		}
	}
	if len(kept) == 0 {
		return "New Conversation", nil
	}
	return strings.Join(kept, " "), nil
}

func capitalize(w string) string {
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

var _ contracts.TitleService = FirstWordsTitle{}
