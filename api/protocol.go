package api

import (
	"board-api/board"
	"board-api/domain"
)

const mutationMaxSize = 64 * 1024 // 64 KiB

const idempotencyKeyHeader = "Idempotency-Key"

// GET /api/board response body
type boardResponse struct {
	Columns     []board.Column `json:"columns"`
	Quarantined int            `json:"quarantined,omitempty"`
	Query       string         `json:"query,omitempty"`
}

// POST /api/tasks request body
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Column      string `json:"column"`
}

// PATCH /api/tasks/:id request body
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Assignee    *string `json:"assignee"`
}

// POST /api/tasks/:id/move request body
type moveTaskRequest struct {
	To string `json:"to"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (r updateTaskRequest) patch() (domain.TaskPatch, bool) {
	p := domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Assignee:    r.Assignee,
	}
	if r.Priority != nil {
		priority, ok := domain.ParsePriority(*r.Priority)
		if !ok {
			return domain.TaskPatch{}, false
		}
		p.Priority = &priority
	}
	return p, true
}
