// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/middleware"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/session"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/logger"
)

// ChatHandler handles chat lifecycle endpoints.
type ChatHandler struct {
	manager *session.Manager
	logger  *logger.Logger
}

// NewChatHandler creates a new chat lifecycle handler.
func NewChatHandler(manager *session.Manager, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		manager: manager,
		logger:  log,
	}
}

// List handles GET /api/v1/agents/{agentID}/chats.
// A failed upstream list degrades to an empty lifecycle view: the console
// treats it as "no chat yet" and creates one on the next turn.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := chi.URLParam(r, "agentID")

	if err := middleware.ValidateAgentID(agentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.manager.ListChats(ctx, agentID)
	if err != nil {
		h.logger.Warn("list chats failed", zap.Error(err), zap.String("agent_id", agentID))
		writeJSON(w, http.StatusOK, &model.ChatList{History: []model.Chat{}})
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// Restart handles POST /api/v1/agents/{agentID}/chats: archive the ongoing
// chat (if any) and start a fresh one.
func (h *ChatHandler) Restart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := chi.URLParam(r, "agentID")
	sessionID := middleware.GetSessionID(ctx)

	if err := middleware.ValidateAgentID(agentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chat, err := h.manager.Restart(ctx, agentID, sessionID)
	if err != nil {
		h.logger.Error("restart chat failed", zap.Error(err), zap.String("agent_id", agentID))
		writeError(w, http.StatusBadGateway, "failed to create chat")
		return
	}

	writeJSON(w, http.StatusCreated, chat)
}

// Load handles GET /api/v1/chats/{chatID}: fetch a chat (ongoing or
// archived) for viewing. Archived chats come back editable.
func (h *ChatHandler) Load(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")

	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chat, err := h.manager.LoadChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, session.ErrChatNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		h.logger.Error("load chat failed", zap.Error(err), zap.String("chat_id", chatID))
		writeError(w, http.StatusBadGateway, "failed to load chat")
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

// Archive handles POST /api/v1/chats/{chatID}/archive. Idempotent.
func (h *ChatHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")
	agentID := r.URL.Query().Get("agent_id")

	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.manager.ArchiveChat(ctx, agentID, chatID); err != nil {
		h.logger.Error("archive chat failed", zap.Error(err), zap.String("chat_id", chatID))
		writeError(w, http.StatusBadGateway, "failed to archive chat")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/chats/{chatID}. The response carries the chat
// the viewer switched to (the surviving ongoing chat, or a newly created
// one).
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")
	agentID := r.URL.Query().Get("agent_id")
	sessionID := middleware.GetSessionID(ctx)

	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateAgentID(agentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switched, err := h.manager.DeleteChat(ctx, agentID, sessionID, chatID)
	if err != nil {
		if errors.Is(err, session.ErrChatNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		h.logger.Error("delete chat failed", zap.Error(err), zap.String("chat_id", chatID))
		writeError(w, http.StatusBadGateway, "failed to delete chat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":     chatID,
		"switched_to": switched,
	})
}
