// Package handlers provides the task handlers the gateway ships with and
// registers them in a task.Registry at startup.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskgate/internal/task"
	"github.com/phrazzld/taskgate/internal/tokenizer"
	"github.com/phrazzld/taskgate/internal/translation"
)

// Handler names.
const (
	Square       = "square"
	Pow2         = "pow2"
	Translate    = "translate"
	TokenizeText = "tokenize_text"
	TokenizeDocs = "tokenize_docs"
)

// Deps are the collaborators and settings the built-in handlers need.
type Deps struct {
	// Translator backs the translate handler; nil leaves it unregistered.
	Translator translation.Translator
	// SourceLanguage is assumed when a translate task names none.
	SourceLanguage string
	// SquareDelay simulates work in the square handler.
	SquareDelay time.Duration
	Logger      *slog.Logger
}

// Register adds every built-in handler to reg.
func Register(reg *task.Registry, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SourceLanguage == "" {
		deps.SourceLanguage = "en"
	}

	square := SquareHandler(deps.SquareDelay)
	handlers := map[string]task.HandlerFunc{
		Square:       square,
		Pow2:         square,
		TokenizeText: TokenizeTextHandler,
		TokenizeDocs: TokenizeDocsHandler,
	}
	if deps.Translator != nil {
		handlers[Translate] = TranslateHandler(deps.Translator, deps.SourceLanguage)
	} else {
		deps.Logger.Warn("no translator configured, translate handler disabled")
	}

	var errs []error
	for name, fn := range handlers {
		if err := reg.Register(name, fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SquareHandler returns x*x after waiting delay. Integral results are
// returned as integers so they encode without a fractional part.
func SquareHandler(delay time.Duration) task.HandlerFunc {
	return func(ctx context.Context, args task.Args) (any, error) {
		x, err := args.Number(0)
		if err != nil {
			return nil, err
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, fmt.Errorf("square interrupted: %w", ctx.Err())
			}
		}

		sq := x * x
		if task.IsIntegral(sq) {
			return int64(sq), nil
		}
		return sq, nil
	}
}

// TranslateHandler translates args[0] into the language args[1]. The source
// language comes from args[2], the "source" kwarg, or defaultSource.
func TranslateHandler(tr translation.Translator, defaultSource string) task.HandlerFunc {
	return func(ctx context.Context, args task.Args) (any, error) {
		if err := args.Require(2); err != nil {
			return nil, err
		}
		text, err := args.String(0)
		if err != nil {
			return nil, err
		}
		target, err := args.String(1)
		if err != nil {
			return nil, err
		}

		source, err := args.NamedString("source", defaultSource)
		if err != nil {
			return nil, err
		}
		if args.Len() > 2 {
			if source, err = args.String(2); err != nil {
				return nil, err
			}
		}

		return tr.Translate(ctx, text, source, target)
	}
}

// TokenizeTextHandler tokenizes args[0]. Kwargs "lowercase" and "deacc"
// select post-processing.
func TokenizeTextHandler(ctx context.Context, args task.Args) (any, error) {
	text, err := args.String(0)
	if err != nil {
		return nil, err
	}
	opts, err := tokenizerOptions(args)
	if err != nil {
		return nil, err
	}
	return tokenizer.Tokenize(text, opts), nil
}

// TokenizeDocsHandler tokenizes every text in the list args[0].
func TokenizeDocsHandler(ctx context.Context, args task.Args) (any, error) {
	texts, err := args.Strings(0)
	if err != nil {
		return nil, err
	}
	opts, err := tokenizerOptions(args)
	if err != nil {
		return nil, err
	}
	return tokenizer.TokenizeDocs(texts, opts), nil
}

func tokenizerOptions(args task.Args) (tokenizer.Options, error) {
	lowercase, err := args.NamedBool("lowercase", false)
	if err != nil {
		return tokenizer.Options{}, err
	}
	deacc, err := args.NamedBool("deacc", false)
	if err != nil {
		return tokenizer.Options{}, err
	}
	return tokenizer.Options{Lowercase: lowercase, Deacc: deacc}, nil
}
