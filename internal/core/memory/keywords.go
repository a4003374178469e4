package memory

import (
	"strings"
	"unicode"
)

// MaxKeywords is the number of keywords taken from a prompt.
const MaxKeywords = 5

const minKeywordLen = 4

var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "been": true,
	"before": true, "being": true, "could": true, "does": true, "doing": true,
	"each": true, "from": true, "have": true, "having": true, "here": true,
	"into": true, "just": true, "like": true, "make": true, "more": true,
	"most": true, "need": true, "only": true, "other": true, "please": true,
	"should": true, "some": true, "such": true, "than": true, "that": true,
	"their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "very": true, "want": true,
	"were": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "will": true, "with": true, "would": true, "your": true,
}

// ExtractKeywords returns up to MaxKeywords distinct lowercase words of at
// least four letters from text, in order of first appearance, skipping
// common English stopwords.
func ExtractKeywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		if len([]rune(w)) < minKeywordLen || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// CompactKeywords select the memories summarised before a context compaction.
var CompactKeywords = []string{"decision", "important", "key", "config"}
