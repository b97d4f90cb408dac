package processing

import "strings"

// Normalize drops every whitespace-separated token whose lower-cased form is
// a stopword and rejoins the survivors with single spaces. Punctuation is
// left attached to its token.
func Normalize(raw string, stopwords Stopwords) string {
	tokens := strings.Fields(raw)
	kept := tokens[:0]
	for _, token := range tokens {
		if stopwords.Contains(token) {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}
