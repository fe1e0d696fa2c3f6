package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/persona-coach/internal/api/middleware"
	"github.com/dvloznov/persona-coach/internal/rag"
	"github.com/rs/zerolog"
)

// ChatService answers knowledge-base questions.
type ChatService interface {
	Ask(ctx context.Context, msg string) (*rag.Answer, error)
}

// ChatHandler serves POST /chat.
type ChatHandler struct {
	chat ChatService
	log  zerolog.Logger
}

// NewChatHandler creates a chat handler. A nil service makes every request 503.
func NewChatHandler(chat ChatService, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: log}
}

type chatRequest struct {
	Msg string `json:"msg"`
}

// Chat handles POST /chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Chat not available")
		return
	}

	var req chatRequest
	if msg, ok := decodeJSON(w, r, &req); !ok {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	answer, err := h.chat.Ask(r.Context(), req.Msg)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Chat failed")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, answer)
}
