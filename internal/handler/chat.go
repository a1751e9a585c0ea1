package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/capitalize-ai/scheduling-agent/internal/middleware"
	"github.com/capitalize-ai/scheduling-agent/internal/model"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
)

// Chatter runs one conversational turn.
type Chatter interface {
	Chat(ctx context.Context, userID, message string, loc *time.Location) string
}

// ChatHandler handles the conversational endpoint.
type ChatHandler struct {
	agent  Chatter
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(agent Chatter, log *logger.Logger) *ChatHandler {
	return &ChatHandler{agent: agent, logger: log}
}

// Chat handles POST /chat. Every turn answers 200; failures inside the turn
// come back as a "System Error: ..." response.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer := h.agent.Chat(
		r.Context(),
		middleware.GetUserID(r.Context()),
		req.Message,
		middleware.GetLocation(r.Context()),
	)

	writeJSON(w, http.StatusOK, model.ChatResponse{Response: answer})
}
