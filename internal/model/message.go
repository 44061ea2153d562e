package model

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversation message.
type Message struct {
	ID        string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Meta is present on assistant messages that classified intent or
	// carry a change proposal.
	Meta *MessageMeta `json:"metadata,omitempty"`
}

// MessageMeta carries assistant-side classification and proposal linkage.
type MessageMeta struct {
	Intent           string          `json:"intent,omitempty"`
	ChangeID         string          `json:"change_id,omitempty"`
	RequiresApproval bool            `json:"requires_approval,omitempty"`
	Preview          *ChangePreview  `json:"preview,omitempty"`
	ExtractedConfig  json.RawMessage `json:"extracted_config,omitempty"`
}

// EditMessageRequest is the upstream request body for editing a message.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// TurnContextItem is one history entry supplied to the stateless turn
// endpoint, which relies on the caller providing the full conversation.
type TurnContextItem struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TurnRequest is the upstream request for a conversational turn.
type TurnRequest struct {
	AgentID   string            `json:"agent_id"`
	SessionID string            `json:"session_id"`
	Message   string            `json:"message"`
	Context   []TurnContextItem `json:"context"`
	ChatID    string            `json:"chat_id"`
}

// TurnResponse is the upstream response for a conversational turn. The change
// fields are set when the assistant is proposing a mutation that requires
// human approval; AppliedChange is set when the platform applied a change
// inline without an approval gate.
type TurnResponse struct {
	Response         string          `json:"response"`
	Intent           string          `json:"intent,omitempty"`
	Preview          *ChangePreview  `json:"preview,omitempty"`
	ChangeID         string          `json:"change_id,omitempty"`
	RequiresApproval bool            `json:"requires_approval,omitempty"`
	ExtractedConfig  json.RawMessage `json:"extracted_config,omitempty"`
	AppliedChange    *AppliedChange  `json:"applied_change,omitempty"`
}
