package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/persona-coach/internal/llm"
	"github.com/rs/zerolog"
)

const (
	snippetLength   = 300
	chatTemperature = 0.2
)

// SystemPrompt is the PocketAdvisor template; {context} and {input} are
// replaced with the retrieved chunks and the user question.
const SystemPrompt = `
You are PocketAdvisor, an educational chatbot that helps young savers (ages 18-25)
make sensible, low-risk, practical decisions with small monthly savings (₹100–₹1,500).
Use the retrieved context below to ground answers when relevant.

Rules (MUST follow):
1. Keep answers concise (max 3 sentences) unless the user asks for a detailed plan.
2. NEVER recommend or name specific stocks, tickers, or individual buy/sell actions.
3. If user gives a monthly amount (e.g., "₹1,200"), return three sample allocations:
   - Conservative, Balanced, Growth. Show % split and the rupee split for the given amount.
4. Prefer low-risk instruments for small monthly savings: Recurring Deposit (RD), high-interest savings,
   liquid / ultra-short debt funds, short-term debt/hybrid funds, and low-cost index SIPs.
5. When using retrieved text, cite the source metadata provided (source field).
6. If you don't know the answer, say you don't know and offer safe, general options.
7. End every reply with the one-line educational disclaimer:
   "Educational only. Not personalized financial advice."

RETRIEVED CONTEXT:
{context}

USER QUESTION:
{input}
`

// ErrEmptyQuestion is returned for blank messages.
var ErrEmptyQuestion = errors.New("msg required")

// Source is a citation returned with an answer.
type Source struct {
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

// Answer is the chat response.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// ChatService answers questions from the knowledge base.
type ChatService struct {
	retriever *Retriever
	completer llm.Completer
	log       zerolog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(retriever *Retriever, completer llm.Completer, log zerolog.Logger) *ChatService {
	return &ChatService{retriever: retriever, completer: completer, log: log}
}

// Ask retrieves context for msg and generates a grounded answer.
func (s *ChatService) Ask(ctx context.Context, msg string) (*Answer, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil, ErrEmptyQuestion
	}

	hits, err := s.retriever.Retrieve(ctx, msg)
	if err != nil {
		return nil, err
	}

	text, err := s.completer.Complete(ctx, llm.Request{
		Prompt:      BuildPrompt(hits, msg),
		Temperature: chatTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("ChatService.Ask: %s completion: %w", s.completer.Name(), err)
	}

	s.log.Debug().Int("hits", len(hits)).Msg("Chat answered")

	sources := make([]Source, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, Source{Source: h.Source, Snippet: truncate(h.Text, snippetLength)})
	}
	return &Answer{Answer: text, Sources: sources}, nil
}

// BuildPrompt fills SystemPrompt with the "stuffed" context of hits.
func BuildPrompt(hits []ScoredChunk, question string) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("[source: %s]\n%s", h.Source, h.Text))
	}
	return strings.NewReplacer(
		"{context}", strings.Join(parts, "\n\n"),
		"{input}", question,
	).Replace(SystemPrompt)
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if charLen(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
