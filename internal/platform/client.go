// Package platform provides the HTTP client for the teaching platform API.
// The platform owns chat persistence, turn inference (including intent
// classification and change-proposal extraction), and change application;
// this service only ever talks to it through the API interface below.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/middleware"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/model"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/logger"
)

// API is the interface consumed by the session layer. *Client implements it;
// tests substitute fakes.
type API interface {
	ListChats(ctx context.Context, agentID string) (*model.ChatList, error)
	GetChat(ctx context.Context, chatID string) (*model.Chat, error)
	CreateChat(ctx context.Context, agentID, sessionID string) (*model.Chat, error)
	ArchiveChat(ctx context.Context, chatID string) error
	DeleteChat(ctx context.Context, chatID string) error
	SendTurn(ctx context.Context, req *model.TurnRequest) (*model.TurnResponse, error)
	ApplyChange(ctx context.Context, agentID, changeID string) (*model.AppliedChange, error)
	RejectChange(ctx context.Context, changeID string) error
	EditMessage(ctx context.Context, messageID, content string) error
	DeleteMessage(ctx context.Context, messageID string) error
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a platform client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// detailResponse is the platform's error envelope.
type detailResponse struct {
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("platform: marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("platform: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cid := middleware.GetCorrelationID(ctx); cid != "" {
		req.Header.Set("X-Correlation-ID", cid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail detailResponse
		if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil {
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("platform: decode response: %w", err)
		}
	}
	return nil
}

// ListChats fetches the lifecycle view for an agent.
func (c *Client) ListChats(ctx context.Context, agentID string) (*model.ChatList, error) {
	var list model.ChatList
	path := fmt.Sprintf("/agents/%s/chats", url.PathEscape(agentID))
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetChat fetches a single chat with its messages.
func (c *Client) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	var resp struct {
		Chat model.Chat `json:"chat"`
	}
	path := fmt.Sprintf("/chats/%s", url.PathEscape(chatID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Chat, nil
}

// CreateChat creates a new empty chat for the agent.
func (c *Client) CreateChat(ctx context.Context, agentID, sessionID string) (*model.Chat, error) {
	var resp struct {
		Chat model.Chat `json:"chat"`
	}
	req := &model.CreateChatRequest{AgentID: agentID, SessionID: sessionID}
	if err := c.do(ctx, http.MethodPost, "/chats", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Chat, nil
}

// ArchiveChat marks a chat as archived. Archiving an already-archived chat is
// a no-op success upstream.
func (c *Client) ArchiveChat(ctx context.Context, chatID string) error {
	path := fmt.Sprintf("/chats/%s/archive", url.PathEscape(chatID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// DeleteChat removes a chat permanently.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	path := fmt.Sprintf("/chats/%s", url.PathEscape(chatID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SendTurn sends one conversational turn. The endpoint is stateless per call;
// req.Context must carry the full visible history.
func (c *Client) SendTurn(ctx context.Context, req *model.TurnRequest) (*model.TurnResponse, error) {
	var resp model.TurnResponse
	if err := c.do(ctx, http.MethodPost, "/agents/message", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ApplyChange applies a pending change proposal.
func (c *Client) ApplyChange(ctx context.Context, agentID, changeID string) (*model.AppliedChange, error) {
	var resp model.AppliedChange
	req := &model.ApplyChangeRequest{AgentID: agentID, ChangeID: changeID}
	if err := c.do(ctx, http.MethodPost, "/agents/apply", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RejectChange rejects a pending change proposal.
func (c *Client) RejectChange(ctx context.Context, changeID string) error {
	path := fmt.Sprintf("/agents/reject/%s", url.PathEscape(changeID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// EditMessage replaces the content of a stored message.
func (c *Client) EditMessage(ctx context.Context, messageID, content string) error {
	path := fmt.Sprintf("/messages/%s", url.PathEscape(messageID))
	return c.do(ctx, http.MethodPut, path, &model.EditMessageRequest{Content: content}, nil)
}

// DeleteMessage removes a stored message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	path := fmt.Sprintf("/messages/%s", url.PathEscape(messageID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
