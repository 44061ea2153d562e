package session

import (
	"context"
	"sync"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
)

// fakeAPI is a scriptable platform.API used across the session tests. Calls
// are recorded in order so tests can assert archive-before-create and
// friends.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	listFn    func(agentID string) (*model.ChatList, error)
	getFn     func(chatID string) (*model.Chat, error)
	createFn  func(agentID, sessionID string) (*model.Chat, error)
	archiveFn func(chatID string) error
	deleteFn  func(chatID string) error
	turnFn    func(req *model.TurnRequest) (*model.TurnResponse, error)
	applyFn   func(agentID, changeID string) (*model.AppliedChange, error)
	rejectFn  func(changeID string) error
	editFn    func(messageID, content string) error
	delMsgFn  func(messageID string) error
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) ListChats(ctx context.Context, agentID string) (*model.ChatList, error) {
	f.record("list:" + agentID)
	if f.listFn != nil {
		return f.listFn(agentID)
	}
	return &model.ChatList{}, nil
}

func (f *fakeAPI) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	f.record("get:" + chatID)
	if f.getFn != nil {
		return f.getFn(chatID)
	}
	return &model.Chat{ID: chatID}, nil
}

func (f *fakeAPI) CreateChat(ctx context.Context, agentID, sessionID string) (*model.Chat, error) {
	f.record("create:" + agentID)
	if f.createFn != nil {
		return f.createFn(agentID, sessionID)
	}
	return &model.Chat{ID: "chat-new", AgentID: agentID, SessionID: sessionID, IsActive: true}, nil
}

func (f *fakeAPI) ArchiveChat(ctx context.Context, chatID string) error {
	f.record("archive:" + chatID)
	if f.archiveFn != nil {
		return f.archiveFn(chatID)
	}
	return nil
}

func (f *fakeAPI) DeleteChat(ctx context.Context, chatID string) error {
	f.record("delete:" + chatID)
	if f.deleteFn != nil {
		return f.deleteFn(chatID)
	}
	return nil
}

func (f *fakeAPI) SendTurn(ctx context.Context, req *model.TurnRequest) (*model.TurnResponse, error) {
	f.record("turn:" + req.AgentID)
	if f.turnFn != nil {
		return f.turnFn(req)
	}
	return &model.TurnResponse{Response: "ok"}, nil
}

func (f *fakeAPI) ApplyChange(ctx context.Context, agentID, changeID string) (*model.AppliedChange, error) {
	f.record("apply:" + changeID)
	if f.applyFn != nil {
		return f.applyFn(agentID, changeID)
	}
	return &model.AppliedChange{Type: model.ChangeKnowledgeAdd, Message: "applied"}, nil
}

func (f *fakeAPI) RejectChange(ctx context.Context, changeID string) error {
	f.record("reject:" + changeID)
	if f.rejectFn != nil {
		return f.rejectFn(changeID)
	}
	return nil
}

func (f *fakeAPI) EditMessage(ctx context.Context, messageID, content string) error {
	f.record("edit:" + messageID)
	if f.editFn != nil {
		return f.editFn(messageID, content)
	}
	return nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, messageID string) error {
	f.record("delmsg:" + messageID)
	if f.delMsgFn != nil {
		return f.delMsgFn(messageID)
	}
	return nil
}
