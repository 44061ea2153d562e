package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/middleware"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/platform"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/session"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/logger"
)

// TurnHandler handles conversational turns, proposal decisions, and message
// edits.
type TurnHandler struct {
	controller *session.Controller
	logger     *logger.Logger
}

// NewTurnHandler creates a new turn handler.
func NewTurnHandler(controller *session.Controller, log *logger.Logger) *TurnHandler {
	return &TurnHandler{
		controller: controller,
		logger:     log,
	}
}

// sendTurnRequest is the console request body for one turn.
type sendTurnRequest struct {
	Message string `json:"message"`
}

// Send handles POST /api/v1/agents/{agentID}/turns.
func (h *TurnHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := chi.URLParam(r, "agentID")
	sessionID := middleware.GetSessionID(ctx)

	if err := middleware.ValidateAgentID(agentID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req sendTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.controller.SendMessage(ctx, agentID, sessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, session.ErrTurnInFlight):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, session.ErrReadOnly):
			writeError(w, http.StatusConflict, err.Error())
		default:
			// Only chat-creation failures reach here; turn failures are
			// converted into assistant-role error messages.
			h.logger.Error("send turn failed", zap.Error(err), zap.String("agent_id", agentID))
			writeError(w, http.StatusBadGateway, "failed to start a chat")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Approve handles POST /api/v1/changes/{changeID}/approve.
func (h *TurnHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changeID := chi.URLParam(r, "changeID")

	if err := middleware.ValidateChangeID(changeID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	applied, err := h.controller.Tracker().Approve(ctx, changeID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownChange):
			writeError(w, http.StatusNotFound, "change not found")
		case errors.Is(err, session.ErrChangeResolved):
			writeError(w, http.StatusConflict, "change already resolved")
		case errors.Is(err, session.ErrChangeInFlight):
			writeError(w, http.StatusConflict, "decision already in progress")
		default:
			// Change stays pending; the console may retry.
			h.logger.Error("approve failed", zap.Error(err), zap.String("change_id", changeID))
			writeError(w, http.StatusBadGateway, "failed to apply change")
		}
		return
	}

	writeJSON(w, http.StatusOK, applied)
}

// Reject handles POST /api/v1/changes/{changeID}/reject.
func (h *TurnHandler) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changeID := chi.URLParam(r, "changeID")

	if err := middleware.ValidateChangeID(changeID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.controller.Tracker().Reject(ctx, changeID); err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownChange):
			writeError(w, http.StatusNotFound, "change not found")
		case errors.Is(err, session.ErrChangeResolved):
			writeError(w, http.StatusConflict, "change already resolved")
		case errors.Is(err, session.ErrChangeInFlight):
			writeError(w, http.StatusConflict, "decision already in progress")
		default:
			h.logger.Error("reject failed", zap.Error(err), zap.String("change_id", changeID))
			writeError(w, http.StatusBadGateway, "failed to reject change")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// editMessageRequest is the console request body for editing a message.
type editMessageRequest struct {
	AgentID string `json:"agent_id"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// Edit handles PUT /api/v1/messages/{messageID}.
func (h *TurnHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := chi.URLParam(r, "messageID")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.controller.EditMessage(ctx, req.AgentID, req.ChatID, messageID, req.Content); err != nil {
		h.writeMessageError(w, err, "edit", messageID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/messages/{messageID}.
func (h *TurnHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := chi.URLParam(r, "messageID")
	agentID := r.URL.Query().Get("agent_id")
	chatID := r.URL.Query().Get("chat_id")

	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.controller.DeleteMessage(ctx, agentID, chatID, messageID); err != nil {
		h.writeMessageError(w, err, "delete", messageID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TurnHandler) writeMessageError(w http.ResponseWriter, err error, op, messageID string) {
	if errors.Is(err, session.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if platform.IsRemoteRejection(err) {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	h.logger.Error("message "+op+" failed", zap.Error(err), zap.String("message_id", messageID))
	writeError(w, http.StatusBadGateway, "failed to "+op+" message")
}
