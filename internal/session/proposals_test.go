package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/events"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/store"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/logger"
)

func newTracker(api *fakeAPI) (*Tracker, *store.MessageStore, *events.Bus) {
	cache := store.New()
	bus := events.NewBus()
	return NewTracker(api, cache, bus, logger.NewNop()), cache, bus
}

func proposeKnowledgeAdd(t *testing.T, tr *Tracker, cache *store.MessageStore) model.Message {
	t.Helper()

	msg := model.Message{
		ID:      "msg-1",
		ChatID:  "chat-1",
		Role:    model.RoleAssistant,
		Content: "I can remember that for you.",
		Meta: &model.MessageMeta{
			ChangeID:         "change-1",
			RequiresApproval: true,
		},
		CreatedAt: time.Now(),
	}
	cache.Append("agent-1", "chat-1", msg)
	tr.Propose("agent-1", "chat-1", &msg, model.Change{
		ID:   "change-1",
		Type: model.ChangeKnowledgeAdd,
	})
	return msg
}

func TestApprovePublishesEventExactlyOnce(t *testing.T) {
	api := &fakeAPI{}
	tr, cache, bus := newTracker(api)

	var got []events.ChangeApplied
	bus.Subscribe(func(ctx context.Context, ev events.ChangeApplied) {
		got = append(got, ev)
	})

	proposeKnowledgeAdd(t, tr, cache)

	applied, err := tr.Approve(context.Background(), "change-1")
	require.NoError(t, err)
	assert.Equal(t, model.ChangeKnowledgeAdd, applied.Type)

	change, ok := tr.Get("change-1")
	require.True(t, ok)
	assert.Equal(t, model.ChangeApproved, change.Status)

	require.Len(t, got, 1)
	assert.Equal(t, model.ChangeKnowledgeAdd, got[0].Type)
	assert.Equal(t, "agent-1", got[0].AgentID)
	assert.Equal(t, "change-1", got[0].ChangeID)

	// The linked message no longer requires approval and an ack followed it.
	msgs := cache.Get("agent-1", "chat-1")
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].Meta.RequiresApproval)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
}

func TestApproveFailureLeavesChangePendingAndRetryable(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		applyFn: func(agentID, changeID string) (*model.AppliedChange, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("apply unavailable")
			}
			return &model.AppliedChange{Type: model.ChangeKnowledgeAdd, Message: "applied"}, nil
		},
	}
	tr, cache, _ := newTracker(api)
	proposeKnowledgeAdd(t, tr, cache)

	_, err := tr.Approve(context.Background(), "change-1")
	require.Error(t, err)

	change, _ := tr.Get("change-1")
	assert.Equal(t, model.ChangePending, change.Status)

	// The proposing message still requires approval; an error ack was added.
	msgs := cache.Get("agent-1", "chat-1")
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Meta.RequiresApproval)

	// Retry succeeds.
	_, err = tr.Approve(context.Background(), "change-1")
	require.NoError(t, err)
	change, _ = tr.Get("change-1")
	assert.Equal(t, model.ChangeApproved, change.Status)
}

func TestRejectIsTerminal(t *testing.T) {
	api := &fakeAPI{}
	tr, cache, _ := newTracker(api)
	proposeKnowledgeAdd(t, tr, cache)

	require.NoError(t, tr.Reject(context.Background(), "change-1"))

	change, _ := tr.Get("change-1")
	assert.Equal(t, model.ChangeRejected, change.Status)

	msgs := cache.Get("agent-1", "chat-1")
	assert.False(t, msgs[0].Meta.RequiresApproval)

	// Neither decision can run again.
	_, err := tr.Approve(context.Background(), "change-1")
	assert.ErrorIs(t, err, ErrChangeResolved)
	assert.ErrorIs(t, tr.Reject(context.Background(), "change-1"), ErrChangeResolved)
}

func TestRejectRemoteFailureStillRejects(t *testing.T) {
	api := &fakeAPI{
		rejectFn: func(changeID string) error {
			return errors.New("network down")
		},
	}
	tr, cache, _ := newTracker(api)
	proposeKnowledgeAdd(t, tr, cache)

	require.NoError(t, tr.Reject(context.Background(), "change-1"))

	change, _ := tr.Get("change-1")
	assert.Equal(t, model.ChangeRejected, change.Status)
}

func TestConcurrentDecisionIsNoOp(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{
		applyFn: func(agentID, changeID string) (*model.AppliedChange, error) {
			close(started)
			<-block
			return &model.AppliedChange{Type: model.ChangeKnowledgeAdd}, nil
		},
	}
	tr, cache, _ := newTracker(api)
	proposeKnowledgeAdd(t, tr, cache)

	done := make(chan error, 1)
	go func() {
		_, err := tr.Approve(context.Background(), "change-1")
		done <- err
	}()

	<-started

	// Rapid double submission while the first decision is in flight.
	_, err := tr.Approve(context.Background(), "change-1")
	assert.ErrorIs(t, err, ErrChangeInFlight)
	assert.ErrorIs(t, tr.Reject(context.Background(), "change-1"), ErrChangeInFlight)

	close(block)
	require.NoError(t, <-done)

	change, _ := tr.Get("change-1")
	assert.Equal(t, model.ChangeApproved, change.Status)
}

func TestApproveUnknownChange(t *testing.T) {
	api := &fakeAPI{}
	tr, _, _ := newTracker(api)

	_, err := tr.Approve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownChange)
}
