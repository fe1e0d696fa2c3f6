// Package llm wraps the language-model backends: Gemini through the genai SDK
// and Groq through its OpenAI-compatible chat completions API.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	TopP        float32
	MaxTokens   int32
}

// Completer produces a text completion for a Request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}

// TextExtractor turns a binary document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ErrEmptyResponse is returned when a backend answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// cleanModelText strips Markdown code fences the model may wrap its answer in.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.Trim(s, "`")
		}
		s = s[idx+1:]
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	return strings.TrimSpace(s)
}
