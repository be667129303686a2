package api

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"board-api/board"
	"board-api/domain"
)

// Boards hands out one board controller per user, created lazily on first
// use. The controller is the single writer to that user's in-memory
// collection; handlers share it across requests.
type Boards struct {
	store  Storage
	logger *log.Logger

	mu     sync.Mutex
	boards map[string]*board.Controller
}

func newBoards(store Storage, logger *log.Logger) *Boards {
	return &Boards{
		store:  store,
		logger: logger,
		boards: make(map[string]*board.Controller),
	}
}

func (b *Boards) get(userID string) *board.Controller {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ctrl, ok := b.boards[userID]; ok {
		return ctrl
	}
	ctrl := board.New(
		userStore{store: b.store, userID: userID},
		board.WithLogger(b.logger),
		board.WithNotifier(board.LogNotifier{Logger: b.logger}),
		board.WithPublisher(eventSink{userID: userID}),
	)
	b.boards[userID] = ctrl
	return ctrl
}

// userStore binds the shared Storage to one user's partition.
type userStore struct {
	store  Storage
	userID string
}

func (s userStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.store.ListTasks(ctx, s.userID)
}

func (s userStore) InsertTask(ctx context.Context, n domain.NewTask) (domain.Task, error) {
	return s.store.InsertTask(ctx, s.userID, n)
}

func (s userStore) UpdateTask(ctx context.Context, id string, p domain.TaskPatch) error {
	return s.store.UpdateTask(ctx, s.userID, id, p)
}

func (s userStore) DeleteTask(ctx context.Context, id string) error {
	return s.store.DeleteTask(ctx, s.userID, id)
}
