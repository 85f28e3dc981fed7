// Package translate normalizes incoming queries to English before retrieval.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/recall/internal/ollama"
	"go.uber.org/zap"
)

var (
	// ErrEmptyTranslation is returned when the model produced no text.
	ErrEmptyTranslation = errors.New("translator returned empty response")
	// ErrTranslationTooLong is returned when the output exceeds the word limit,
	// which usually means the model answered instead of translating.
	ErrTranslationTooLong = errors.New("translator output suspiciously long")
)

// Translator rewrites a query into the retrieval language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Passthrough returns its input unchanged.
type Passthrough struct{}

// Translate implements Translator.
func (Passthrough) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

const (
	DefaultModel    = "gemma3:4b"
	DefaultTimeout  = 10 * time.Second
	DefaultMaxWords = 50
)

// OllamaOptions configure an OllamaTranslator.
type OllamaOptions struct {
	Model    string
	Timeout  time.Duration
	MaxWords int
}

// OllamaTranslator translates through an Ollama generate call at temperature 0.
type OllamaTranslator struct {
	client   *ollama.Client
	model    string
	timeout  time.Duration
	maxWords int
	logger   *zap.Logger
}

// NewOllamaTranslator returns a translator backed by client.
func NewOllamaTranslator(client *ollama.Client, opts OllamaOptions, logger *zap.Logger) *OllamaTranslator {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaTranslator{
		client:   client,
		model:    opts.Model,
		timeout:  opts.Timeout,
		maxWords: opts.MaxWords,
		logger:   logger,
	}
}

// Translate implements Translator. Blank input is returned as is.
func (t *OllamaTranslator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.client.Generate(ctx, t.model, buildPrompt(text), ollama.GenerateOptions{Temperature: 0})
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	translated := strings.TrimSpace(out)
	if translated == "" {
		return "", ErrEmptyTranslation
	}
	if n := len(strings.Fields(translated)); n > t.maxWords {
		return "", fmt.Errorf("%w: %d words (max %d)", ErrTranslationTooLong, n, t.maxWords)
	}
	t.logger.Debug("translated query", zap.String("input", text), zap.String("output", translated))
	return translated, nil
}

func buildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("You are a translation engine.\n")
	b.WriteString("Translate the input to English only.\n")
	b.WriteString("Do not explain.\n")
	b.WriteString("Do not add commentary.\n")
	b.WriteString("Output only the translated sentence.\n\n")
	b.WriteString("Input:\n")
	b.WriteString(text)
	b.WriteString("\n\nOutput:")
	return b.String()
}
