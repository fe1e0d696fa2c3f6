package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// ProviderGemini is the Completer name of GeminiClient.
const ProviderGemini = "gemini"

const extractPrompt = "Extract the full readable text of the attached document.\n" +
	"Rules:\n" +
	"- Preserve paragraph breaks as blank lines.\n" +
	"- Keep headings on their own line.\n" +
	"- Render tables as one row per line with cells separated by \" | \".\n" +
	"- Do not summarise, translate or comment.\n" +
	"- Do NOT wrap the response in code fences.\n"

// GeminiClient calls Gemini models through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a genai client. Credentials and backend come from
// the environment (GOOGLE_API_KEY or GOOGLE_GENAI_USE_VERTEXAI and friends).
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Name implements Completer.
func (c *GeminiClient) Name() string { return ProviderGemini }

// Complete implements Completer.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(req.TopP)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: req.Prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("GeminiClient.Complete: generate content: %w", err)
	}

	text := cleanModelText(resp.Text())
	if text == "" {
		return "", fmt.Errorf("GeminiClient.Complete: %w", ErrEmptyResponse)
	}
	return text, nil
}

// ExtractText implements TextExtractor by sending the document inline to the model.
func (c *GeminiClient) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("GeminiClient.ExtractText: generate content: %w", err)
	}

	text := cleanModelText(resp.Text())
	if text == "" {
		return "", fmt.Errorf("GeminiClient.ExtractText: %w", ErrEmptyResponse)
	}
	return text, nil
}

var (
	_ Completer     = (*GeminiClient)(nil)
	_ TextExtractor = (*GeminiClient)(nil)
)
