package translation

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Translator translates text from one language to another.
//
// Languages are BCP 47 tags ("en", "es", "pt-BR"). Implementations return
// ErrUnsupportedLanguage when they cannot serve a pair.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// ParseLanguage normalises a language tag and rejects malformed input.
func ParseLanguage(tag string) (language.Tag, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return language.Und, fmt.Errorf("%w: empty language tag", ErrUnsupportedLanguage)
	}
	t, err := language.Parse(tag)
	if err != nil {
		return language.Und, fmt.Errorf("%w: %q: %v", ErrUnsupportedLanguage, tag, err)
	}
	return t, nil
}

// SameLanguage reports whether two tags name the same base language.
func SameLanguage(a, b language.Tag) bool {
	ba, _ := a.Base()
	bb, _ := b.Base()
	return ba == bb
}
