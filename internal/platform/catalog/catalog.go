// Package catalog implements translation.Translator on top of bundled
// go-i18n message catalogs. It translates English words and short phrases
// into the languages it ships catalogs for, and needs no network access.
package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/naoina/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/phrazzld/taskgate/internal/translation"
)

//go:embed locales/*.toml
var localeFS embed.FS

var wordPattern = regexp.MustCompile(`[\p{L}\p{M}]+`)

// Translator looks words up in message catalogs keyed by their lowercase
// English form.
type Translator struct {
	bundle  *i18n.Bundle
	targets []language.Tag
	logger  *slog.Logger
}

var _ translation.Translator = (*Translator)(nil)

// New builds a Translator from the embedded catalogs.
func New(logger *slog.Logger) (*Translator, error) {
	return NewFromFS(localeFS, "locales", logger)
}

// NewFromFS builds a Translator from every active.*.toml file in dir.
func NewFromFS(fsys fs.FS, dir string, logger *slog.Logger) (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(fsys, path.Join(dir, "active.*.toml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", translation.ErrInvalidConfig, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no catalogs in %s", translation.ErrInvalidConfig, dir)
	}

	for _, file := range files {
		if _, err := loadMessageFromFS(bundle, fsys, file); err != nil {
			return nil, fmt.Errorf("%w: error loading %s: %v", translation.ErrInvalidConfig, file, err)
		}
	}

	var targets []language.Tag
	for _, tag := range bundle.LanguageTags() {
		if !translation.SameLanguage(tag, language.English) {
			targets = append(targets, tag)
		}
	}

	t := &Translator{
		bundle:  bundle,
		targets: targets,
		logger:  logger.With("component", "catalog_translator"),
	}
	t.logger.Debug("loaded translation catalogs", "files", len(files), "languages", len(targets))
	return t, nil
}

// Languages lists the target languages with a catalog.
func (t *Translator) Languages() []string {
	out := make([]string, 0, len(t.targets))
	for _, tag := range t.targets {
		out = append(out, tag.String())
	}
	return out
}

// Translate translates text word by word. Every word must be in the catalog; punctuation and spacing are kept and
// capitalization follows the source word.
func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	src, err := translation.ParseLanguage(source)
	if err != nil {
		return "", err
	}
	dst, err := translation.ParseLanguage(target)
	if err != nil {
		return "", err
	}
	if !translation.SameLanguage(src, language.English) {
		return "", fmt.Errorf("%w: %s->%s: catalogs translate from English only",
			translation.ErrUnsupportedLanguage, source, target)
	}
	if translation.SameLanguage(src, dst) {
		return text, nil
	}

	tag, ok := t.match(dst)
	if !ok {
		return "", fmt.Errorf("%w: %s->%s", translation.ErrUnsupportedLanguage, source, target)
	}
	localizer := i18n.NewLocalizer(t.bundle, tag.String())

	var (
		b    strings.Builder
		last int
	)
	for _, loc := range wordPattern.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		out, err := t.lookup(localizer, word)
		if err != nil {
			t.logger.DebugContext(ctx, "word missing from catalog", "word", word, "target", tag.String())
			return "", err
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(out)
		last = loc[1]
	}
	b.WriteString(text[last:])

	return b.String(), nil
}

func (t *Translator) match(target language.Tag) (language.Tag, bool) {
	for _, tag := range t.targets {
		if translation.SameLanguage(tag, target) {
			return tag, true
		}
	}
	return language.Und, false
}

func (t *Translator) lookup(localizer *i18n.Localizer, word string) (string, error) {
	out, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: strings.ToLower(word)})
	if err != nil {
		var notFound *i18n.MessageNotFoundErr
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: no catalog entry for %q", translation.ErrTranslationFailed, word)
		}
		return "", fmt.Errorf("%w: %v", translation.ErrTranslationFailed, err)
	}
	return matchCase(word, out), nil
}

// matchCase applies the capitalization of word to out.
func matchCase(word, out string) string {
	if utf8.RuneCountInString(word) > 1 && strings.ToUpper(word) == word && strings.ToLower(word) != word {
		return strings.ToUpper(out)
	}
	first, _ := utf8.DecodeRuneInString(word)
	if !unicode.IsUpper(first) {
		return out
	}
	r, size := utf8.DecodeRuneInString(out)
	if r == utf8.RuneError {
		return out
	}
	return string(unicode.ToUpper(r)) + out[size:]
}

func loadMessageFromFS(b *i18n.Bundle, fsys fs.FS, file string) (*i18n.MessageFile, error) {
	buf, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, err
	}
	return b.ParseMessageFileBytes(buf, path.Base(file))
}
