package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/phrazzld/taskgate/internal/config"
	"github.com/phrazzld/taskgate/internal/translation"
)

// contentGenerator is the part of *genai.Models the translator uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Translator implements translation.Translator using a Gemini model.
type Translator struct {
	logger *slog.Logger

	// models issues GenerateContent calls
	models contentGenerator

	// model is the name of the Gemini model to use
	model string

	maxRetries int
	baseDelay  time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ translation.Translator = (*Translator)(nil)

// NewTranslator creates a Translator with a Gemini API client configured
// from cfg.
func NewTranslator(ctx context.Context, logger *slog.Logger, cfg config.TranslationConfig) (*Translator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", translation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", translation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", translation.ErrInvalidConfig, err)
	}

	return newTranslator(client.Models, logger, cfg), nil
}

func newTranslator(models contentGenerator, logger *slog.Logger, cfg config.TranslationConfig) *Translator {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Translator{
		logger:     logger.With("component", "gemini_translator", "model", cfg.ModelName),
		models:     models,
		model:      cfg.ModelName,
		maxRetries: maxRetries,
		baseDelay:  cfg.RetryDelay(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Translate asks the model for a translation of text from source to target.
func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	src, err := translation.ParseLanguage(source)
	if err != nil {
		return "", err
	}
	dst, err := translation.ParseLanguage(target)
	if err != nil {
		return "", err
	}
	if translation.SameLanguage(src, dst) {
		return text, nil
	}

	prompt, err := renderPrompt(text, src.String(), dst.String())
	if err != nil {
		return "", err
	}

	return t.generateWithRetry(ctx, prompt)
}

func (t *Translator) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0.1)
	genConfig := &genai.GenerateContentConfig{Temperature: &temperature}

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1

		resp, err := t.models.GenerateContent(ctx, t.model, genai.Text(prompt), genConfig)
		if err == nil {
			text, perr := extractText(resp)
			if perr != nil {
				t.logger.WarnContext(ctx, "Permanent error occurred, not retrying",
					"attempt", attemptNum, "error", perr)
				return "", perr
			}
			t.logger.DebugContext(ctx, "Gemini API call successful", "attempt", attemptNum)
			return text, nil
		}

		t.logger.ErrorContext(ctx, "Gemini API call failed", "attempt", attemptNum, "error", err)

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", translation.ErrTransientFailure, ctx.Err())
		}
		if attempt >= t.maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				translation.ErrTransientFailure, t.maxRetries, err)
		}

		delay := t.backoff(attempt)
		t.logger.InfoContext(ctx, "Retrying after delay", "attempt", attemptNum, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("%w: %v", translation.ErrTransientFailure, ctx.Err())
		}
	}
}

// backoff returns baseDelay * 2^attempt scaled by a jitter in [0.5, 1.0).
func (t *Translator) backoff(attempt int) time.Duration {
	t.rngMu.Lock()
	jitter := 0.5 + t.rng.Float64()*0.5
	t.rngMu.Unlock()

	return time.Duration(float64(t.baseDelay) * math.Pow(2, float64(attempt)) * jitter)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	switch {
	case resp == nil:
		return "", fmt.Errorf("%w: nil response", translation.ErrInvalidResponse)
	case len(resp.Candidates) == 0 || resp.Candidates[0] == nil:
		return "", fmt.Errorf("%w: no content generated", translation.ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", fmt.Errorf("%w: content blocked by safety filters", translation.ErrContentBlocked)
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", translation.ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty translation", translation.ErrInvalidResponse)
	}
	return text, nil
}
