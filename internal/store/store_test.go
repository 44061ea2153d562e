package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
)

func msgs(ids ...string) []model.Message {
	out := make([]model.Message, len(ids))
	for i, id := range ids {
		out[i] = model.Message{ID: id, Role: model.RoleUser, Content: "m-" + id}
	}
	return out
}

func TestReconcileEmptyCacheAdoptsIncoming(t *testing.T) {
	s := New()

	got := s.Reconcile("a", "c", msgs("1", "2"))
	require.Len(t, got, 2)
	assert.Equal(t, 2, s.Len("a", "c"))
}

func TestReconcileCachedWinsWhenAtLeastAsLong(t *testing.T) {
	s := New()
	s.Put("a", "c", msgs("1", "2", "3"))

	// Equal length: cached wins.
	got := s.Reconcile("a", "c", msgs("x", "y", "z"))
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].ID)

	// Shorter incoming (stale read): cached wins.
	got = s.Reconcile("a", "c", msgs("x"))
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[2].ID)
}

func TestReconcileLongerIncomingReplaces(t *testing.T) {
	s := New()
	s.Put("a", "c", msgs("1"))

	got := s.Reconcile("a", "c", msgs("1", "2"))
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, 2, s.Len("a", "c"))
}

func TestAppendSurvivesStaleReconcile(t *testing.T) {
	s := New()
	s.Put("a", "c", msgs("1", "2"))

	// Optimistic local append lands before a stale poll of the original
	// two messages comes back.
	s.Append("a", "c", msgs("3", "4")...)
	got := s.Reconcile("a", "c", msgs("1", "2"))

	require.Len(t, got, 4)
	assert.Equal(t, "4", got[3].ID)
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	s.Put("a", "c", msgs("1"))

	got := s.Get("a", "c")
	got[0].Content = "mutated"

	assert.Equal(t, "m-1", s.Get("a", "c")[0].Content)
}

func TestKeysAreIndependent(t *testing.T) {
	s := New()
	s.Put("a", "c1", msgs("1"))
	s.Put("a", "c2", msgs("1", "2"))
	s.Put("b", "c1", msgs("1", "2", "3"))

	assert.Equal(t, 1, s.Len("a", "c1"))
	assert.Equal(t, 2, s.Len("a", "c2"))
	assert.Equal(t, 3, s.Len("b", "c1"))
}

func TestUpdateMessage(t *testing.T) {
	s := New()
	s.Put("a", "c", msgs("1", "2"))

	ok := s.UpdateMessage("a", "c", "2", func(m *model.Message) {
		m.Content = "edited"
	})
	require.True(t, ok)
	assert.Equal(t, "edited", s.Get("a", "c")[1].Content)

	assert.False(t, s.UpdateMessage("a", "c", "missing", func(m *model.Message) {}))
}

func TestRemoveMessagePreservesOrder(t *testing.T) {
	s := New()
	s.Put("a", "c", msgs("1", "2", "3"))

	require.True(t, s.RemoveMessage("a", "c", "2"))
	got := s.Get("a", "c")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	assert.False(t, s.RemoveMessage("a", "c", "2"))
}

func TestEvictAndClear(t *testing.T) {
	s := New()
	s.Put("a", "c1", msgs("1"))
	s.Put("a", "c2", msgs("1"))

	s.Evict("a", "c1")
	assert.Nil(t, s.Get("a", "c1"))
	assert.Equal(t, 1, s.Len("a", "c2"))

	s.Clear()
	assert.Zero(t, s.Len("a", "c2"))
}

func TestConcurrentAppendAndReconcile(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Append("a", "c", model.Message{ID: fmt.Sprintf("m%d", i)})
		}(i)
		go func() {
			defer wg.Done()
			s.Reconcile("a", "c", nil)
		}()
	}
	wg.Wait()

	// Every append survived: reconcile with empty incoming never shrinks
	// an existing entry.
	assert.Equal(t, 50, s.Len("a", "c"))
}
