// Package store provides the in-memory message cache for teach sessions.
//
// The cache is the client-side view of conversation state, keyed by
// (agent, chat). It lives for the process lifetime, is cleared only by
// explicit chat deletion or Clear, and reconciles against upstream reads with
// a length-based recency heuristic: an optimistic local append (user message
// plus assistant reply not yet reflected upstream) must not be clobbered by a
// stale poll, and without vector clocks the longer sequence is the newer one.
package store

import (
	"sync"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/metrics"
)

type key struct {
	agentID string
	chatID  string
}

// MessageStore is an injectable, mutex-guarded message cache. All operations
// on a given key are mutually exclusive, so an Append cannot interleave with
// a concurrent Reconcile or Put.
type MessageStore struct {
	mu      sync.RWMutex
	entries map[key][]model.Message
}

// New creates an empty MessageStore.
func New() *MessageStore {
	return &MessageStore{
		entries: make(map[key][]model.Message),
	}
}

// Get returns a copy of the cached sequence for the key, or nil when absent.
func (s *MessageStore) Get(agentID, chatID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached, ok := s.entries[key{agentID, chatID}]
	if !ok {
		return nil
	}
	return append([]model.Message(nil), cached...)
}

// Len returns the number of cached messages for the key.
func (s *MessageStore) Len(agentID, chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[key{agentID, chatID}])
}

// Put replaces the cached sequence unconditionally. Used after confirmed
// upstream state.
func (s *MessageStore) Put(agentID, chatID string, messages []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key{agentID, chatID}] = append([]model.Message(nil), messages...)
}

// Reconcile chooses between the cached sequence and a freshly fetched one.
// The cached sequence wins when it exists and is at least as long as the
// incoming one; otherwise the incoming sequence is adopted and cached. The
// chosen sequence is returned.
func (s *MessageStore) Reconcile(agentID, chatID string, incoming []model.Message) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{agentID, chatID}
	cached, ok := s.entries[k]
	if ok && len(cached) >= len(incoming) {
		metrics.CacheReconciles.WithLabelValues("cached").Inc()
		return append([]model.Message(nil), cached...)
	}

	metrics.CacheReconciles.WithLabelValues("incoming").Inc()
	s.entries[k] = append([]model.Message(nil), incoming...)
	return append([]model.Message(nil), incoming...)
}

// Append adds messages to the end of the cached sequence atomically.
func (s *MessageStore) Append(agentID, chatID string, messages ...model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{agentID, chatID}
	s.entries[k] = append(s.entries[k], messages...)
	for _, m := range messages {
		metrics.MessagesTotal.WithLabelValues(string(m.Role)).Inc()
	}
}

// UpdateMessage applies fn to the cached message with the given ID, under the
// store lock. It reports whether the message was found.
func (s *MessageStore) UpdateMessage(agentID, chatID, messageID string, fn func(*model.Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.entries[key{agentID, chatID}]
	for i := range msgs {
		if msgs[i].ID == messageID {
			fn(&msgs[i])
			return true
		}
	}
	return false
}

// RemoveMessage deletes the cached message with the given ID, preserving
// order. It reports whether the message was found.
func (s *MessageStore) RemoveMessage(agentID, chatID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{agentID, chatID}
	msgs := s.entries[k]
	for i := range msgs {
		if msgs[i].ID == messageID {
			s.entries[k] = append(msgs[:i:i], msgs[i+1:]...)
			return true
		}
	}
	return false
}

// Evict drops the cache entry for a single chat. Called on chat deletion.
func (s *MessageStore) Evict(agentID, chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key{agentID, chatID})
}

// Clear drops every cache entry. Called on logout.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[key][]model.Message)
}
