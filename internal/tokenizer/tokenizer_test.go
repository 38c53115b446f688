package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		opts Options
		want []string
	}{
		{name: "words", text: "Hello, world!", want: []string{"Hello", "world"}},
		{name: "digits split", text: "abc123def 42", want: []string{"abc", "def"}},
		{name: "underscore kept", text: "snake_case here", want: []string{"snake_case", "here"}},
		{name: "apostrophe splits", text: "don't", want: []string{"don", "t"}},
		{name: "unicode letters", text: "Größe café 東京", want: []string{"Größe", "café", "東京"}},
		{name: "lowercase", text: "Hello WORLD", opts: Options{Lowercase: true}, want: []string{"hello", "world"}},
		{name: "deacc", text: "Crème brûlée", opts: Options{Deacc: true}, want: []string{"Creme", "brulee"}},
		{name: "both", text: "ÉCOLE", opts: Options{Lowercase: true, Deacc: true}, want: []string{"ecole"}},
		{name: "decomposed input", text: "cafe\u0301", want: []string{"caf\u00e9"}},
		{name: "empty", text: "", want: []string{}},
		{name: "no letters", text: "123 ... 456", want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Tokenize(tc.text, tc.opts))
		})
	}
}

func TestTokenizeDocs(t *testing.T) {
	t.Parallel()

	got := TokenizeDocs([]string{"one two", "", "Three"}, Options{Lowercase: true})
	assert.Equal(t, [][]string{{"one", "two"}, {}, {"three"}}, got)
	assert.Equal(t, [][]string{}, TokenizeDocs(nil, Options{}))
}

func TestDeaccent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Senor naive", Deaccent("Señor naïve"))
	assert.Equal(t, "plain", Deaccent("plain"))
}
