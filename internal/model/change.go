package model

import (
	"encoding/json"
)

// ChangeType classifies the structured mutation a proposal would apply.
type ChangeType string

const (
	ChangePersonaUpdate ChangeType = "persona_update"
	ChangeActionCreate  ChangeType = "action_create"
	ChangeKnowledgeAdd  ChangeType = "knowledge_add"
)

// ChangeStatus is the lifecycle state of a proposal. A change transitions out
// of pending exactly once and never reverts.
type ChangeStatus string

const (
	ChangePending  ChangeStatus = "pending"
	ChangeApproved ChangeStatus = "approved"
	ChangeRejected ChangeStatus = "rejected"
)

// Change is a structured mutation proposed by the assistant, gated behind
// explicit human approval.
type Change struct {
	ID     string          `json:"change_id"`
	Type   ChangeType      `json:"type"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
	Status ChangeStatus    `json:"status"`
}

// ChangePreview is the before/after snapshot shown to the user alongside a
// proposal.
type ChangePreview struct {
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// AppliedChange is the upstream acknowledgement of an applied change, either
// from the apply endpoint or returned inline with a turn response.
type AppliedChange struct {
	Type    ChangeType `json:"type"`
	Message string     `json:"message"`
}

// ApplyChangeRequest is the upstream request to apply a pending change.
type ApplyChangeRequest struct {
	AgentID  string `json:"agent_id"`
	ChangeID string `json:"change_id"`
}
