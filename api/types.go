package api

import (
	"context"

	"board-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	InsertTask(ctx context.Context, userID string, n domain.NewTask) (domain.Task, error)
	UpdateTask(ctx context.Context, userID, id string, p domain.TaskPatch) error
	DeleteTask(ctx context.Context, userID, id string) error
	EnqueueEvents(ctx context.Context, userID string, events []domain.BoardEvent) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}
