package handler

import (
	"log/slog"
	"net/http"

	"github.com/civicforum/constitution-platform/internal/service"
)

// ChatHandler proxies questions to the assistant.
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

func NewChatHandler(chat *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

// HandleChat answers one message.
//
// HTTP: POST /api/chat
// REQUEST BODY: {"message": "What does Article 21 protect?"}
// RESPONSE:     {"reply": "...", "model": "gemini-2.5-flash"}
//
// 503 when no assistant is configured or every model is over its quota.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	reply, err := h.chat.Ask(r.Context(), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"reply": reply.Answer,
		"model": reply.Model,
	})
}
