package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/events"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/platform"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/store"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/logger"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/metrics"
)

var (
	// ErrEmptyMessage is returned when the trimmed message text is empty.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrTurnInFlight is returned when a send for the same agent is still
	// running; the duplicate submission is rejected.
	ErrTurnInFlight = errors.New("a turn is already in flight")
	// ErrReadOnly is returned when the viewed chat is locked for historical
	// inspection.
	ErrReadOnly = errors.New("chat is read-only")
)

const maxLazyTitleLen = 60

// TurnResult is the outcome of one conversational turn. Failed turns still
// produce an assistant-role message describing the failure; transport and
// upstream errors never propagate past the controller.
type TurnResult struct {
	Chat             *model.Chat   `json:"chat"`
	UserMessage      model.Message `json:"user_message"`
	AssistantMessage model.Message `json:"assistant_message"`
	Change           *model.Change `json:"change,omitempty"`
	Failed           bool          `json:"failed,omitempty"`
}

// Controller is the single entry point coordinating the lifecycle manager,
// the message cache, the proposal tracker, and the platform turn endpoint.
type Controller struct {
	manager *Manager
	tracker *Tracker
	cache   *store.MessageStore
	api     platform.API
	bus     *events.Bus
	logger  *logger.Logger

	mu       sync.Mutex
	sending  map[string]bool // agentID -> turn in flight
	readOnly map[string]bool // chatID -> historical-inspection lock
}

// NewController creates a conversation controller.
func NewController(
	manager *Manager,
	tracker *Tracker,
	cache *store.MessageStore,
	api platform.API,
	bus *events.Bus,
	log *logger.Logger,
) *Controller {
	return &Controller{
		manager:  manager,
		tracker:  tracker,
		cache:    cache,
		api:      api,
		bus:      bus,
		logger:   log,
		sending:  make(map[string]bool),
		readOnly: make(map[string]bool),
	}
}

// Manager exposes the lifecycle manager for handlers.
func (c *Controller) Manager() *Manager { return c.manager }

// Tracker exposes the proposal tracker for handlers.
func (c *Controller) Tracker() *Tracker { return c.tracker }

// IsReadOnly reports whether a chat is locked for historical inspection.
// Nothing in the current flows sets this: loading an archived chat resumes it
// as editable.
func (c *Controller) IsReadOnly(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readOnly[chatID]
}

// SetReadOnly toggles the historical-inspection lock for a chat.
func (c *Controller) SetReadOnly(chatID string, ro bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ro {
		c.readOnly[chatID] = true
	} else {
		delete(c.readOnly, chatID)
	}
}

func (c *Controller) claimSend(agentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending[agentID] {
		return false
	}
	c.sending[agentID] = true
	return true
}

func (c *Controller) releaseSend(agentID string) {
	c.mu.Lock()
	delete(c.sending, agentID)
	c.mu.Unlock()
}

// SendMessage runs one conversational turn: optimistic local append of the
// user message, a stateless turn call carrying the full visible history, and
// the assistant reply (possibly proposing a change) appended on return.
func (c *Controller) SendMessage(ctx context.Context, agentID, sessionID, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	if !c.claimSend(agentID) {
		return nil, ErrTurnInFlight
	}
	defer c.releaseSend(agentID)

	chat := c.manager.Viewing(agentID)
	if chat == nil {
		var err error
		chat, err = c.manager.EnsureOngoing(ctx, agentID, sessionID)
		if err != nil {
			return nil, err
		}
	}
	if c.IsReadOnly(chat.ID) {
		return nil, ErrReadOnly
	}

	start := time.Now()

	userMsg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ChatID:    chat.ID,
		Role:      model.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}
	c.cache.Append(agentID, chat.ID, userMsg)

	if chat.Title == "" && c.cache.Len(agentID, chat.ID) == 1 {
		c.manager.SetTitle(agentID, chat.ID, lazyTitle(text))
	}

	history := c.cache.Get(agentID, chat.ID)
	turnCtx := make([]model.TurnContextItem, len(history))
	for i, m := range history {
		turnCtx[i] = model.TurnContextItem{Role: m.Role, Content: m.Content}
	}

	resp, err := c.api.SendTurn(ctx, &model.TurnRequest{
		AgentID:   agentID,
		SessionID: sessionID,
		Message:   text,
		Context:   turnCtx,
		ChatID:    chat.ID,
	})
	if err != nil {
		errMsg := model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			ChatID:    chat.ID,
			Role:      model.RoleAssistant,
			Content:   turnFailureText(err),
			CreatedAt: time.Now(),
		}
		c.cache.Append(agentID, chat.ID, errMsg)
		metrics.RecordTurn(agentID, "error", time.Since(start).Seconds())
		c.logger.Error("turn failed",
			zap.Error(err),
			zap.String("agent_id", agentID),
			zap.String("chat_id", chat.ID),
		)
		return &TurnResult{
			Chat:             chat,
			UserMessage:      userMsg,
			AssistantMessage: errMsg,
			Failed:           true,
		}, nil
	}

	assistantMsg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ChatID:    chat.ID,
		Role:      model.RoleAssistant,
		Content:   resp.Response,
		CreatedAt: time.Now(),
	}
	if resp.Intent != "" || resp.ChangeID != "" {
		assistantMsg.Meta = &model.MessageMeta{
			Intent:           resp.Intent,
			ChangeID:         resp.ChangeID,
			RequiresApproval: resp.RequiresApproval,
			Preview:          resp.Preview,
			ExtractedConfig:  resp.ExtractedConfig,
		}
	}

	var change *model.Change
	if resp.RequiresApproval && resp.ChangeID != "" {
		ch := model.Change{
			ID:   resp.ChangeID,
			Type: changeTypeFromIntent(resp.Intent),
		}
		if resp.Preview != nil {
			ch.Before = resp.Preview.Before
			ch.After = resp.Preview.After
		}
		if ch.After == nil {
			ch.After = resp.ExtractedConfig
		}
		c.tracker.Propose(agentID, chat.ID, &assistantMsg, ch)
		ch.Status = model.ChangePending
		change = &ch
	}

	c.cache.Append(agentID, chat.ID, assistantMsg)

	if resp.AppliedChange != nil {
		c.bus.Publish(ctx, events.ChangeApplied{
			ID:        uuid.Must(uuid.NewV7()).String(),
			AgentID:   agentID,
			Type:      resp.AppliedChange.Type,
			Message:   resp.AppliedChange.Message,
			CreatedAt: time.Now(),
		})
	}

	c.manager.Refresh(ctx, agentID)
	metrics.RecordTurn(agentID, "success", time.Since(start).Seconds())

	return &TurnResult{
		Chat:             c.manager.Viewing(agentID),
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Change:           change,
	}, nil
}

// EditMessage replaces a message's content. The remote store is updated
// first; local state only mutates after a success response. Read-only chats
// are a no-op.
func (c *Controller) EditMessage(ctx context.Context, agentID, chatID, messageID, content string) error {
	if c.IsReadOnly(chatID) {
		return nil
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	if err := c.api.EditMessage(ctx, messageID, content); err != nil {
		return err
	}

	c.cache.UpdateMessage(agentID, chatID, messageID, func(m *model.Message) {
		m.Content = content
	})
	return nil
}

// DeleteMessage removes a message, remote-first. Read-only chats are a no-op.
func (c *Controller) DeleteMessage(ctx context.Context, agentID, chatID, messageID string) error {
	if c.IsReadOnly(chatID) {
		return nil
	}

	if err := c.api.DeleteMessage(ctx, messageID); err != nil {
		return err
	}

	c.cache.RemoveMessage(agentID, chatID, messageID)
	return nil
}

func lazyTitle(text string) string {
	title := strings.TrimSpace(text)
	if runes := []rune(title); len(runes) > maxLazyTitleLen {
		title = strings.TrimSpace(string(runes[:maxLazyTitleLen])) + "…"
	}
	return title
}

func turnFailureText(err error) string {
	if platform.IsRemoteRejection(err) {
		return "Sorry, something went wrong while thinking about that. Please try again."
	}
	return "Sorry, I couldn't reach the teaching service. Check your connection and try again."
}

// changeTypeFromIntent maps the turn classifier's intent tag onto a change
// type. Unrecognized tags default to knowledge_add, the least destructive
// mutation.
func changeTypeFromIntent(intent string) model.ChangeType {
	switch model.ChangeType(intent) {
	case model.ChangePersonaUpdate, model.ChangeActionCreate, model.ChangeKnowledgeAdd:
		return model.ChangeType(intent)
	}
	switch intent {
	case "persona", "update_persona":
		return model.ChangePersonaUpdate
	case "action", "create_action", "automation":
		return model.ChangeActionCreate
	case "knowledge", "add_knowledge":
		return model.ChangeKnowledgeAdd
	}
	return model.ChangeKnowledgeAdd
}
