package session

import (
	"context"
	"errors"
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
	// ErrUnknownChange is returned for change IDs the tracker has never seen.
	ErrUnknownChange = errors.New("unknown change")
	// ErrChangeResolved is returned when a change already left pending.
	ErrChangeResolved = errors.New("change already resolved")
	// ErrChangeInFlight is returned when an approve/reject for the same
	// change is still running; the duplicate submission is a no-op.
	ErrChangeInFlight = errors.New("change decision in flight")
)

// link ties a change to the assistant message that proposed it.
type link struct {
	agentID   string
	chatID    string
	messageID string
}

// Tracker tracks pending change proposals and drives their single
// pending -> approved|rejected transition.
type Tracker struct {
	api    platform.API
	cache  *store.MessageStore
	bus    *events.Bus
	logger *logger.Logger

	mu       sync.Mutex
	changes  map[string]*model.Change
	links    map[string]link
	inflight map[string]bool
}

// NewTracker creates a change proposal tracker.
func NewTracker(api platform.API, cache *store.MessageStore, bus *events.Bus, log *logger.Logger) *Tracker {
	return &Tracker{
		api:      api,
		cache:    cache,
		bus:      bus,
		logger:   log,
		changes:  make(map[string]*model.Change),
		links:    make(map[string]link),
		inflight: make(map[string]bool),
	}
}

// Propose registers a pending change and links it to the assistant message
// that carries it.
func (t *Tracker) Propose(agentID, chatID string, msg *model.Message, change model.Change) {
	change.Status = model.ChangePending

	t.mu.Lock()
	c := change
	t.changes[change.ID] = &c
	t.links[change.ID] = link{agentID: agentID, chatID: chatID, messageID: msg.ID}
	t.mu.Unlock()

	metrics.ProposalsTotal.WithLabelValues(string(change.Type), "proposed").Inc()

	t.logger.Info("change proposed",
		zap.String("agent_id", agentID),
		zap.String("chat_id", chatID),
		zap.String("change_id", change.ID),
		zap.String("type", string(change.Type)),
	)
}

// Get returns a copy of the tracked change.
func (t *Tracker) Get(changeID string) (*model.Change, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.changes[changeID]
	if !ok {
		return nil, false
	}
	copied := *c
	return &copied, true
}

// begin claims the in-flight flag for a pending change, returning its link.
func (t *Tracker) begin(changeID string) (*model.Change, link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.changes[changeID]
	if !ok {
		return nil, link{}, ErrUnknownChange
	}
	if c.Status != model.ChangePending {
		return nil, link{}, ErrChangeResolved
	}
	if t.inflight[changeID] {
		return nil, link{}, ErrChangeInFlight
	}
	t.inflight[changeID] = true
	return c, t.links[changeID], nil
}

func (t *Tracker) finish(changeID string) {
	t.mu.Lock()
	delete(t.inflight, changeID)
	t.mu.Unlock()
}

// resolve moves the change out of pending and clears requires_approval on the
// linked message. The two flip together: requires_approval is true exactly
// while the change is pending.
func (t *Tracker) resolve(c *model.Change, ln link, status model.ChangeStatus) {
	t.mu.Lock()
	c.Status = status
	t.mu.Unlock()

	t.cache.UpdateMessage(ln.agentID, ln.chatID, ln.messageID, func(m *model.Message) {
		if m.Meta != nil {
			m.Meta.RequiresApproval = false
		}
	})
}

func (t *Tracker) appendAck(ln link, content string) model.Message {
	msg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ChatID:    ln.chatID,
		Role:      model.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
	t.cache.Append(ln.agentID, ln.chatID, msg)
	return msg
}

// Approve applies a pending change upstream. On success the change becomes
// approved, the linked message stops requiring approval, an acknowledgement
// is appended to the conversation, and a ChangeApplied event is published. On
// failure the change stays pending and may be retried.
func (t *Tracker) Approve(ctx context.Context, changeID string) (*model.AppliedChange, error) {
	c, ln, err := t.begin(changeID)
	if err != nil {
		return nil, err
	}
	defer t.finish(changeID)

	applied, err := t.api.ApplyChange(ctx, ln.agentID, changeID)
	if err != nil {
		t.appendAck(ln, "I couldn't apply that change. You can try approving it again.")
		metrics.ProposalsTotal.WithLabelValues(string(c.Type), "apply_failed").Inc()
		t.logger.Error("apply change failed",
			zap.Error(err),
			zap.String("agent_id", ln.agentID),
			zap.String("change_id", changeID),
		)
		return nil, err
	}

	t.resolve(c, ln, model.ChangeApproved)

	ack := applied.Message
	if ack == "" {
		ack = "Done. The change has been applied."
	}
	t.appendAck(ln, ack)

	changeType := applied.Type
	if changeType == "" {
		changeType = c.Type
	}
	t.bus.Publish(ctx, events.ChangeApplied{
		ID:        uuid.Must(uuid.NewV7()).String(),
		AgentID:   ln.agentID,
		ChangeID:  changeID,
		Type:      changeType,
		Message:   applied.Message,
		CreatedAt: time.Now(),
	})

	metrics.ProposalsTotal.WithLabelValues(string(changeType), "approved").Inc()
	return applied, nil
}

// Reject declines a pending change. The upstream reject call is fire and
// forget: its failure is logged but the change still becomes rejected, since
// a fresh proposal requires re-issuing the conversational turn anyway.
func (t *Tracker) Reject(ctx context.Context, changeID string) error {
	c, ln, err := t.begin(changeID)
	if err != nil {
		return err
	}
	defer t.finish(changeID)

	if err := t.api.RejectChange(ctx, changeID); err != nil {
		t.logger.Warn("reject change call failed",
			zap.Error(err),
			zap.String("agent_id", ln.agentID),
			zap.String("change_id", changeID),
		)
	}

	t.resolve(c, ln, model.ChangeRejected)
	t.appendAck(ln, "Okay, I won't make that change.")
	metrics.ProposalsTotal.WithLabelValues(string(c.Type), "rejected").Inc()
	return nil
}
