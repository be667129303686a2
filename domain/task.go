package domain

import "strings"

// Status identifies the board column a task lives in. Raw values are parsed
// case-insensitively at the store boundary; unrecognized values map to
// StatusUnknown and are quarantined instead of silently dropped.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
	StatusUnknown    Status = ""
)

// DefaultColumns is the fixed column configuration, in display order.
var DefaultColumns = []Status{StatusTodo, StatusInProgress, StatusDone}

// ParseStatus resolves a raw status string to a known column identifier.
// Matching ignores case and surrounding whitespace; "-" and "_" are treated
// as spaces so "in_progress" and "In Progress" are equivalent.
func ParseStatus(raw string) (Status, bool) {
	switch normalizeStatus(raw) {
	case "todo":
		return StatusTodo, true
	case "in progress", "inprogress":
		return StatusInProgress, true
	case "done":
		return StatusDone, true
	}
	return StatusUnknown, false
}

func normalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return s
}

// Matches reports whether the raw column identifier refers to this status.
func (s Status) Matches(raw string) bool {
	parsed, ok := ParseStatus(raw)
	return ok && parsed == s
}

// Priority affects only the display badge, never ordering.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority resolves a raw priority, falling back to medium for empty
// input. Unknown non-empty values are rejected.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	case "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	}
	return PriorityMedium, false
}

// Task represents a single board item.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Assignee    string   `json:"assignee,omitempty"`
	// CreatedAt is the store-assigned creation timestamp in unix
	// nanoseconds. Collection order is ascending CreatedAt.
	CreatedAt int64 `json:"createdAt"`
}

// NewTask carries the fields a client supplies when creating a task. The
// store assigns ID and CreatedAt and returns the canonical record.
type NewTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
}
