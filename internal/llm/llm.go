// Package llm adapts generative-language providers behind a single interface.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/float/internal/apperr"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Request is one structured-output generation call.
type Request struct {
	// SystemContext carries the serialized reference graph and instructions.
	SystemContext string
	// UserContent is the block text, sent verbatim.
	UserContent string
}

// Generator produces a response body that is expected, but not guaranteed,
// to be JSON.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// New returns the generator for cfg.Provider. A missing API key yields a
// generator that fails every call with apperr.ErrMissingCredential.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		logger.Warn("llm: no API key configured; executions will fail", slog.String("provider", cfg.Provider))
		return Unavailable{}, nil
	}
	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// Unavailable is the generator used when no credential is configured.
type Unavailable struct{}

// Generate always fails with apperr.ErrMissingCredential.
func (Unavailable) Generate(context.Context, Request) (string, error) {
	return "", apperr.ErrMissingCredential
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
