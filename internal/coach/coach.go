package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/persona-coach/internal/llm"
	"github.com/rs/zerolog"
)

// ProviderError reports a failed completion call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("Error communicating with %s API: %v", displayName(e.Provider), e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func displayName(provider string) string {
	switch provider {
	case llm.ProviderGroq:
		return "Groq"
	case llm.ProviderGemini:
		return "Gemini"
	default:
		return provider
	}
}

// Observer is told about every completion attempt.
type Observer func(provider string, err error)

// Coach turns purchases into advice.
type Coach struct {
	completer llm.Completer
	log       zerolog.Logger
	observe   Observer
}

// New creates a Coach. observe may be nil.
func New(completer llm.Completer, log zerolog.Logger, observe Observer) *Coach {
	if observe == nil {
		observe = func(string, error) {}
	}
	return &Coach{completer: completer, log: log, observe: observe}
}

// Advise returns trimmed advice text for r, or a *ProviderError.
func (c *Coach) Advise(ctx context.Context, r AdviceRequest) (string, error) {
	req := BuildPrompt(r)

	advice, err := c.completer.Complete(ctx, req)
	c.observe(c.completer.Name(), err)
	if err != nil {
		c.log.Error().
			Err(err).
			Str("provider", c.completer.Name()).
			Str("category", r.TransactionCategory).
			Msg("Advice generation failed")
		return "", &ProviderError{Provider: c.completer.Name(), Err: err}
	}

	c.log.Debug().
		Str("provider", c.completer.Name()).
		Str("category", r.TransactionCategory).
		Int32("max_tokens", req.MaxTokens).
		Msg("Advice generated")
	return strings.TrimSpace(advice), nil
}
