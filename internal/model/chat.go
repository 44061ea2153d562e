// Package model defines data structures for the teach-session service.
package model

import (
	"time"
)

// Chat represents one conversation between a user and their agent. At most one
// chat per agent is active ("ongoing") at any time; superseded chats are
// archived, never deleted automatically.
type Chat struct {
	ID           string    `json:"chat_id"`
	AgentID      string    `json:"agent_id"`
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title,omitempty"`
	IsActive     bool      `json:"is_active"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Messages is populated when a single chat is fetched; list responses
	// carry only the chat records.
	Messages []Message `json:"messages,omitempty"`
}

// ChatList is the lifecycle view for an agent: the ongoing chat (if any) plus
// the archive history.
type ChatList struct {
	Ongoing *Chat  `json:"ongoing_chat"`
	History []Chat `json:"chats"`
}

// CreateChatRequest is the upstream request to create a new chat.
type CreateChatRequest struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
}
