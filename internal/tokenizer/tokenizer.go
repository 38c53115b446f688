// Package tokenizer splits text into alphabetic tokens.
//
// A token is a maximal run of letters, underscores and non-decimal numeric
// runes; decimal digits, whitespace and punctuation separate tokens, so
// "abc123def" yields "abc" and "def".
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var alphabetic = regexp.MustCompile(`[\p{L}\p{Nl}\p{No}_]+`)

// Options control token post-processing.
type Options struct {
	// Lowercase folds tokens to lower case.
	Lowercase bool `json:"lowercase"`
	// Deacc strips accent marks ("café" becomes "cafe").
	Deacc bool `json:"deacc"`
}

// Tokenize returns the tokens of text in order. The result is never nil.
func Tokenize(text string, opts Options) []string {
	text = norm.NFC.String(text)
	if opts.Lowercase {
		text = strings.ToLower(text)
	}
	if opts.Deacc {
		text = Deaccent(text)
	}

	tokens := alphabetic.FindAllString(text, -1)
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// TokenizeDocs tokenizes each text independently.
func TokenizeDocs(texts []string, opts Options) [][]string {
	out := make([][]string, len(texts))
	for i, text := range texts {
		out[i] = Tokenize(text, opts)
	}
	return out
}

// Deaccent removes combining marks after canonical decomposition.
func Deaccent(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}
