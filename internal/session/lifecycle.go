// Package session implements the conversational session manager behind the
// "teach your agent" console: chat lifecycle, the reconciling message cache
// view, and the change-proposal approval machinery.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/platform"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/store"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/logger"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/metrics"
)

// ErrChatNotFound is returned when a chat ID is not known upstream.
var ErrChatNotFound = errors.New("chat not found")

// notFound reports whether err is an upstream 404.
func notFound(err error) bool {
	var apiErr *platform.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Manager owns chat lifecycle per agent and enforces the single-active-chat
// invariant: a new chat is only created after the previous ongoing chat's
// archival has completed or failed, never before it was attempted.
type Manager struct {
	api    platform.API
	cache  *store.MessageStore
	logger *logger.Logger

	mu      sync.Mutex
	ongoing map[string]*model.Chat // agentID -> ongoing chat record
	viewing map[string]*model.Chat // agentID -> chat currently viewed
	agentMu map[string]*sync.Mutex // serializes lifecycle ops per agent
}

// NewManager creates a chat lifecycle manager.
func NewManager(api platform.API, cache *store.MessageStore, log *logger.Logger) *Manager {
	return &Manager{
		api:     api,
		cache:   cache,
		logger:  log,
		ongoing: make(map[string]*model.Chat),
		viewing: make(map[string]*model.Chat),
		agentMu: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockAgent(agentID string) func() {
	m.mu.Lock()
	lock, ok := m.agentMu[agentID]
	if !ok {
		lock = &sync.Mutex{}
		m.agentMu[agentID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// ListChats fetches the lifecycle view for an agent and refreshes the local
// ongoing record. Transport failures are returned to the caller, who treats
// them as "no chat yet".
func (m *Manager) ListChats(ctx context.Context, agentID string) (*model.ChatList, error) {
	list, err := m.api.ListChats(ctx, agentID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if list.Ongoing != nil {
		c := *list.Ongoing
		m.ongoing[agentID] = &c
	} else {
		delete(m.ongoing, agentID)
	}
	m.mu.Unlock()

	return list, nil
}

// Ongoing returns the locally known ongoing chat for the agent, or nil.
func (m *Manager) Ongoing(agentID string) *model.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.ongoing[agentID]; ok {
		copied := *c
		return &copied
	}
	return nil
}

// Viewing returns the chat the agent's console is currently viewing, or nil.
func (m *Manager) Viewing(agentID string) *model.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.viewing[agentID]; ok {
		copied := *c
		return &copied
	}
	return nil
}

// EnsureOngoing returns the agent's ongoing chat, creating one when none
// exists. A failed list is treated as "no chat" and falls through to create.
func (m *Manager) EnsureOngoing(ctx context.Context, agentID, sessionID string) (*model.Chat, error) {
	unlock := m.lockAgent(agentID)
	defer unlock()

	list, err := m.api.ListChats(ctx, agentID)
	if err != nil {
		m.logger.Warn("list chats failed, treating as no ongoing chat",
			zap.Error(err), zap.String("agent_id", agentID))
	} else if list.Ongoing != nil {
		m.setOngoingAndView(agentID, list.Ongoing)
		return m.Viewing(agentID), nil
	}

	return m.createLocked(ctx, agentID, sessionID)
}

// CreateChat archives the current ongoing chat (best effort, but always
// attempted and awaited first) and then creates a fresh one. A failed
// archival is logged and does not block creation.
func (m *Manager) CreateChat(ctx context.Context, agentID, sessionID string) (*model.Chat, error) {
	unlock := m.lockAgent(agentID)
	defer unlock()
	return m.createLocked(ctx, agentID, sessionID)
}

func (m *Manager) createLocked(ctx context.Context, agentID, sessionID string) (*model.Chat, error) {
	m.mu.Lock()
	prev := m.ongoing[agentID]
	m.mu.Unlock()

	// Archive must be attempted before create; creating first would leave
	// two chats active at once.
	if prev != nil && prev.IsActive {
		if err := m.api.ArchiveChat(ctx, prev.ID); err != nil {
			m.logger.Warn("archive before create failed",
				zap.Error(err),
				zap.String("agent_id", agentID),
				zap.String("chat_id", prev.ID),
			)
		} else {
			m.mu.Lock()
			prev.IsActive = false
			m.mu.Unlock()
			metrics.ChatsTotal.WithLabelValues("archived").Inc()
		}
	}

	chat, err := m.api.CreateChat(ctx, agentID, sessionID)
	if err != nil {
		return nil, err
	}

	m.setOngoingAndView(agentID, chat)
	m.cache.Put(agentID, chat.ID, nil)
	metrics.ChatsTotal.WithLabelValues("created").Inc()

	m.logger.Info("chat created",
		zap.String("agent_id", agentID),
		zap.String("chat_id", chat.ID),
	)

	copied := *chat
	return &copied, nil
}

func (m *Manager) setOngoingAndView(agentID string, chat *model.Chat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *chat
	m.ongoing[agentID] = &c
	v := *chat
	m.viewing[agentID] = &v
}

// ArchiveChat archives a chat. Archiving an already-archived chat is a no-op
// success.
func (m *Manager) ArchiveChat(ctx context.Context, agentID, chatID string) error {
	m.mu.Lock()
	if c, ok := m.ongoing[agentID]; ok && c.ID == chatID && !c.IsActive {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.api.ArchiveChat(ctx, chatID); err != nil {
		return err
	}

	m.mu.Lock()
	if c, ok := m.ongoing[agentID]; ok && c.ID == chatID {
		c.IsActive = false
		delete(m.ongoing, agentID)
	}
	if c, ok := m.viewing[agentID]; ok && c.ID == chatID {
		c.IsActive = false
	}
	m.mu.Unlock()

	metrics.ChatsTotal.WithLabelValues("archived").Inc()
	return nil
}

// LoadChat fetches a chat (ongoing or archived) for viewing, reconciles its
// messages into the cache, and switches the viewing context. It never alters
// is_active and never forces the chat read-only: any past chat can be
// resumed.
func (m *Manager) LoadChat(ctx context.Context, chatID string) (*model.Chat, error) {
	chat, err := m.api.GetChat(ctx, chatID)
	if err != nil {
		if notFound(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	chat.Messages = m.cache.Reconcile(chat.AgentID, chat.ID, chat.Messages)

	m.mu.Lock()
	c := *chat
	m.viewing[chat.AgentID] = &c
	m.mu.Unlock()

	return chat, nil
}

// SetTitle updates the locally tracked title for a chat. Titles are assigned
// lazily from the first user message when upstream has not set one.
func (m *Manager) SetTitle(agentID, chatID, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.ongoing[agentID]; ok && c.ID == chatID && c.Title == "" {
		c.Title = title
	}
	if c, ok := m.viewing[agentID]; ok && c.ID == chatID && c.Title == "" {
		c.Title = title
	}
}

// DeleteChat removes a chat permanently and evicts its cache entry. When the
// deleted chat was the one being viewed, the viewer switches to the agent's
// ongoing chat if one remains, otherwise a fresh chat is created. The
// resulting viewed chat is returned.
func (m *Manager) DeleteChat(ctx context.Context, agentID, sessionID, chatID string) (*model.Chat, error) {
	unlock := m.lockAgent(agentID)
	defer unlock()

	if err := m.api.DeleteChat(ctx, chatID); err != nil {
		if notFound(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	m.cache.Evict(agentID, chatID)
	metrics.ChatsTotal.WithLabelValues("deleted").Inc()

	m.mu.Lock()
	if c, ok := m.ongoing[agentID]; ok && c.ID == chatID {
		delete(m.ongoing, agentID)
	}
	viewingDeleted := false
	if c, ok := m.viewing[agentID]; ok && c.ID == chatID {
		delete(m.viewing, agentID)
		viewingDeleted = true
	}
	ongoing := m.ongoing[agentID]
	m.mu.Unlock()

	if !viewingDeleted {
		return m.Viewing(agentID), nil
	}

	if ongoing != nil {
		// Switch to the surviving ongoing chat using its cached messages.
		m.mu.Lock()
		c := *ongoing
		c.Messages = m.cache.Get(agentID, c.ID)
		m.viewing[agentID] = &c
		m.mu.Unlock()
		copied := c
		return &copied, nil
	}

	return m.createLocked(ctx, agentID, sessionID)
}

// Restart archives the current ongoing chat and creates a new one. Exposed as
// a named user action; the console asks for confirmation before calling it.
func (m *Manager) Restart(ctx context.Context, agentID, sessionID string) (*model.Chat, error) {
	m.logger.Info("restarting chat", zap.String("agent_id", agentID))
	return m.CreateChat(ctx, agentID, sessionID)
}

// Refresh re-polls the lifecycle state for an agent to pick up upstream
// message counts and history. Best effort; failures are logged only.
func (m *Manager) Refresh(ctx context.Context, agentID string) {
	if _, err := m.ListChats(ctx, agentID); err != nil {
		m.logger.Debug("lifecycle refresh failed", zap.Error(err), zap.String("agent_id", agentID))
	}
}
