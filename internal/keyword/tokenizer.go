package keyword

import (
	"strings"
	"unicode"
)

// stopwords are dropped from both documents and queries.
var stopwords = map[string]struct{}{
	"add":     {},
	"make":    {},
	"with":    {},
	"instead": {},
	"please":  {},
	"and":     {},
	"or":      {},
	"the":     {},
	"a":       {},
	"to":      {},
}

// Tokenize lowercases text, splits it on every rune that is not a letter,
// digit, combining mark or underscore, and removes stopwords.
// The result is deterministic for a given input.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	fields := strings.FieldsFunc(strings.ToLower(text), isSeparator)
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IsStopword reports whether the lowercased token is on the stopword list.
func IsStopword(token string) bool {
	_, ok := stopwords[strings.ToLower(token)]
	return ok
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_')
}

// tokenSet returns the distinct tokens of toks.
func tokenSet(toks []string) map[string]struct{} {
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}
