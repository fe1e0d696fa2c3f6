package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// ProviderGroq is the Completer name of GroqClient.
	ProviderGroq = "groq"

	groqAPIURL     = "https://api.groq.com/openai/v1/chat/completions"
	defaultTimeout = 60 * time.Second
)

// GroqClient calls an OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

// GroqOption configures a GroqClient.
type GroqOption func(*GroqClient)

// WithBaseURL points the client at another chat completions URL.
func WithBaseURL(url string) GroqOption {
	return func(c *GroqClient) { c.url = url }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) GroqOption {
	return func(c *GroqClient) { c.httpClient = hc }
}

// NewGroqClient creates a client for model authenticated with apiKey.
func NewGroqClient(apiKey, model string, opts ...GroqOption) *GroqClient {
	c := &GroqClient{
		apiKey:     apiKey,
		model:      model,
		url:        groqAPIURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	TopP        float32       `json:"top_p,omitempty"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Name implements Completer.
func (c *GroqClient) Name() string { return ProviderGroq }

// Complete implements Completer.
func (c *GroqClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("GroqClient.Complete: GROQ_API_KEY not provided")
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("GroqClient.Complete: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("GroqClient.Complete: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("GroqClient.Complete: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("GroqClient.Complete: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("GroqClient.Complete: unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("GroqClient.Complete: API error (status %d): %s: %s", resp.StatusCode, parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GroqClient.Complete: unexpected status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("GroqClient.Complete: %w", ErrEmptyResponse)
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("GroqClient.Complete: %w", ErrEmptyResponse)
	}
	return text, nil
}

var _ Completer = (*GroqClient)(nil)
