package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/persona-coach/internal/api/middleware"
	"github.com/dvloznov/persona-coach/internal/coach"
	"github.com/rs/zerolog"
)

// Advisor produces purchase advice.
type Advisor interface {
	Advise(ctx context.Context, r coach.AdviceRequest) (string, error)
}

// AdviceHandler serves POST /generate_advice.
type AdviceHandler struct {
	advisor Advisor
	log     zerolog.Logger
}

// NewAdviceHandler creates a new advice handler.
func NewAdviceHandler(advisor Advisor, log zerolog.Logger) *AdviceHandler {
	return &AdviceHandler{advisor: advisor, log: log}
}

// GenerateAdvice handles POST /generate_advice
func (h *AdviceHandler) GenerateAdvice(w http.ResponseWriter, r *http.Request) {
	var req coach.AdviceRequest
	if msg, ok := decodeJSON(w, r, &req); !ok {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	advice, err := h.advisor.Advise(r.Context(), req)
	if err != nil {
		var perr *coach.ProviderError
		if errors.As(err, &perr) {
			middleware.WriteError(w, http.StatusBadGateway, perr.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to generate advice")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate advice")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"advice": advice})
}
