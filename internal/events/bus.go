// Package events carries change-lifecycle notifications out of the session
// layer. Collaborating views (persona editor, automation list, knowledge base)
// subscribe to the bus instead of being wired in as callbacks, and an optional
// NATS publisher mirrors events to the rest of the platform.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/metrics"
)

// ChangeApplied is published after a change of any type takes effect, whether
// through explicit approval or an applied_change returned inline with a turn.
type ChangeApplied struct {
	ID        string           `json:"id"`
	AgentID   string           `json:"agent_id"`
	ChangeID  string           `json:"change_id,omitempty"`
	Type      model.ChangeType `json:"type"`
	Message   string           `json:"message,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Handler consumes ChangeApplied events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(ctx context.Context, ev ChangeApplied)

// Bus is an in-process fan-out of change events.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all subsequent events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(ctx context.Context, ev ChangeApplied) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	for _, h := range handlers {
		h(ctx, ev)
	}
}
