package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/middleware"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, logger.NewNop())
}

func TestListChats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/agents/agent-1/chats", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"ongoing_chat": map[string]any{"chat_id": "c1", "agent_id": "agent-1", "is_active": true},
			"chats":        []map[string]any{{"chat_id": "c0", "is_active": false}},
		})
	})

	list, err := c.ListChats(context.Background(), "agent-1")
	require.NoError(t, err)
	require.NotNil(t, list.Ongoing)
	assert.Equal(t, "c1", list.Ongoing.ID)
	require.Len(t, list.History, 1)
	assert.Equal(t, "c0", list.History[0].ID)
}

func TestSendTurn(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/agents/message", r.URL.Path)

		var req model.TurnRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "agent-1", req.AgentID)
		assert.Equal(t, "hello", req.Message)
		require.Len(t, req.Context, 1)

		json.NewEncoder(w).Encode(model.TurnResponse{
			Response:         "hi",
			Intent:           "knowledge_add",
			ChangeID:         "ch-1",
			RequiresApproval: true,
		})
	})

	resp, err := c.SendTurn(context.Background(), &model.TurnRequest{
		AgentID:   "agent-1",
		SessionID: "s1",
		Message:   "hello",
		Context:   []model.TurnContextItem{{Role: model.RoleUser, Content: "hello"}},
		ChatID:    "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Response)
	assert.True(t, resp.RequiresApproval)
	assert.Equal(t, "ch-1", resp.ChangeID)
}

func TestRemoteRejectionCarriesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "chat not found"})
	})

	err := c.DeleteChat(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, IsRemoteRejection(err))

	apiErr := err.(*APIError)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "chat not found", apiErr.Detail)
}

func TestTransportFailureIsNotRemoteRejection(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond, logger.NewNop())

	_, err := c.ListChats(context.Background(), "agent-1")
	require.Error(t, err)
	assert.False(t, IsRemoteRejection(err))
}

func TestCorrelationIDPropagates(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Correlation-ID")
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.WithValue(context.Background(), middleware.CorrelationIDKey, "corr-1")
	require.NoError(t, c.ArchiveChat(ctx, "c1"))
	assert.Equal(t, "corr-1", got)
}

func TestApplyChange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/apply", r.URL.Path)

		var req model.ApplyChangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ch-1", req.ChangeID)

		json.NewEncoder(w).Encode(model.AppliedChange{
			Type:    model.ChangePersonaUpdate,
			Message: "persona updated",
		})
	})

	applied, err := c.ApplyChange(context.Background(), "agent-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, model.ChangePersonaUpdate, applied.Type)
}

func TestRejectChangeEscapesPath(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.RejectChange(context.Background(), "ch/../1"))
	assert.Equal(t, "/agents/reject/ch%2F..%2F1", path)
}

func TestEditMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/messages/m1", r.URL.Path)

		var req model.EditMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "new text", req.Content)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.EditMessage(context.Background(), "m1", "new text"))
}

func TestGetChatUnwrapsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"chat": map[string]any{
				"chat_id":  "c1",
				"agent_id": "agent-1",
				"messages": []map[string]any{
					{"message_id": "m1", "role": "user", "content": "hi"},
				},
			},
		})
	})

	chat, err := c.GetChat(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", chat.ID)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, model.RoleUser, chat.Messages[0].Role)
}
