package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Thread is a persisted conversation. UpdatedAt is bumped on every appended
// message.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one conversation turn. Messages are immutable once created and
// ordered by CreatedAt ascending within a thread. ToolCalls holds the
// serialized tool invocations of an assistant turn, if any.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Role      string    `json:"role"` // "user", "assistant", "system", "tool"
	Content   string    `json:"content"`
	ToolCalls string    `json:"toolCalls,omitempty"` // JSON stored as text
	CreatedAt time.Time `json:"createdAt"`
}

// Pending action lifecycle states.
const (
	PendingStatusOpen     = "open"
	PendingStatusExecuted = "executed"
	PendingStatusRejected = "rejected"
	PendingStatusExpired  = "expired"
)

// PendingAction is a durable confirmation token issued when a gated tool call
// is deflected. Approving it re-invokes the tool with the stored parameters,
// bypassing the model.
type PendingAction struct {
	ID          string    `json:"id"`
	ToolName    string    `json:"toolName"`
	ParamsJSON  string    `json:"params"` // original call parameters, JSON
	Action      string    `json:"action"` // "update" or "delete"
	Description string    `json:"description"`
	TargetType  string    `json:"targetType"`
	TargetID    string    `json:"targetId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}
