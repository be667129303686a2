package domain

import "encoding/json"

// Board event types published after successful mutations.
const (
	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskMoved   = "task-moved"
	TaskDeleted = "task-deleted"
)

// BoardEvent describes a single persisted board change for downstream
// consumers. Data holds the event-specific payload.
type BoardEvent struct {
	ID     string          `json:"id"`
	TaskID string          `json:"taskId"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
	Time   int64           `json:"time"`
}

// BoardEventEnvelope wraps an event with the user whose board changed.
type BoardEventEnvelope struct {
	UserID string     `json:"userId"`
	Event  BoardEvent `json:"event"`
}
