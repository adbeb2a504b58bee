package classifier

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it on any non-alphanumeric rune.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var stemSuffixes = []string{"ingly", "edly", "ing", "ies", "ied", "ed", "es", "ly", "s"}

// Stem strips common English suffixes. It is a fixed, deterministic
// suffix-stripper tuned for keyword matching, not a general stemmer: both
// keywords and tokens pass through it, so the exact stems only need to agree
// with themselves.
func Stem(token string) string {
	for _, suffix := range stemSuffixes {
		if strings.HasSuffix(token, suffix) && len(token)-len(suffix) >= 3 {
			return token[:len(token)-len(suffix)]
		}
	}
	return token
}

func stemAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = Stem(t)
	}
	return out
}
