// Package board holds the in-memory board state: the ordered task
// collection mirrored from the remote store, the search query, and the
// current drag gesture. The controller owns the only writer to that state;
// every mutation goes remote-first and touches local state only after the
// store confirms it.
package board

import (
	"context"
	"errors"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"board-api/domain"
)

// ErrEmptyTitle is returned when a create or edit would persist a
// whitespace-only title. No remote call is made.
var ErrEmptyTitle = errors.New("task title must not be empty")

// ErrUnknownColumn is returned when a create names a column that is not
// configured on the board.
var ErrUnknownColumn = errors.New("unknown board column")

// Store is the remote persistence surface the controller drives, already
// bound to a single user's board.
type Store interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	InsertTask(ctx context.Context, n domain.NewTask) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, p domain.TaskPatch) error
	DeleteTask(ctx context.Context, id string) error
}

// Notifier receives transient user-facing notifications. Implementations
// must not block; nothing in the controller inspects what happens to them.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

// Publisher receives board events after a mutation has been persisted and
// applied locally.
type Publisher interface {
	Publish(ev domain.BoardEvent)
}

// Column is one rendered status bucket: the tasks of the (search-filtered)
// collection whose status matches the column, in collection order.
type Column struct {
	Status domain.Status `json:"status"`
	Count  int           `json:"count"`
	Tasks  []domain.Task `json:"tasks"`
}

// Controller is the board state container.
type Controller struct {
	store   Store
	notify  Notifier
	publish Publisher
	logger  *log.Logger
	columns []domain.Status

	mu         sync.Mutex
	tasks      []domain.Task
	loaded     bool
	loading    bool
	loadErr    error
	query      string
	draggingID string

	// taskLocks serializes mutations per task id so an earlier-issued,
	// later-resolving store response can never overwrite a later one.
	taskLocks keyedLocks
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier routes notifications to n instead of discarding them.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notify = n
		}
	}
}

// WithPublisher routes board events to p.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.publish = p
		}
	}
}

// WithLogger replaces the standard logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithColumns replaces the default column configuration.
func WithColumns(columns []domain.Status) Option {
	return func(c *Controller) {
		if len(columns) > 0 {
			c.columns = columns
		}
	}
}

// New creates a Controller over the given store.
func New(store Store, opts ...Option) *Controller {
	if store == nil {
		panic("board.New: store is nil")
	}
	c := &Controller{
		store:   store,
		notify:  noopNotifier{},
		publish: noopPublisher{},
		logger:  log.StandardLogger(),
		columns: domain.DefaultColumns,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the full task collection from the store. While the fetch is
// in flight Loading reports true; on failure LoadError carries the failure
// until a retry succeeds. Load is also the retry action.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	tasks, err := c.store.ListTasks(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.loadErr = err
		c.logger.WithError(err).Error("board load failed")
		return err
	}
	c.loadErr = nil
	c.loaded = true
	c.tasks = tasks
	if n := c.quarantinedLocked(); n > 0 {
		c.logger.WithField("count", n).Warn("tasks with unrecognized status quarantined")
	}
	return nil
}

// Loaded reports whether an initial load has succeeded.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Loading reports whether a load is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LoadError returns the failure of the most recent load, if any.
func (c *Controller) LoadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// SetQuery updates the live search query. Filtering is a view computation;
// the stored collection is untouched.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
}

// Query returns the current search query.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Tasks returns a copy of the full collection in its current order.
func (c *Controller) Tasks() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Columns partitions the search-filtered collection into the configured
// columns. A task appears in a column iff its status equals the column
// identifier and its title contains the query, both case-insensitively.
func (c *Controller) Columns() []Column {
	c.mu.Lock()
	defer c.mu.Unlock()

	query := strings.ToLower(c.query)
	out := make([]Column, len(c.columns))
	for i, status := range c.columns {
		out[i] = Column{Status: status, Tasks: []domain.Task{}}
	}
	for _, task := range c.tasks {
		if query != "" && !strings.Contains(strings.ToLower(task.Title), query) {
			continue
		}
		for i, status := range c.columns {
			if task.Status == status {
				out[i].Tasks = append(out[i].Tasks, task)
				break
			}
		}
	}
	for i := range out {
		out[i].Count = len(out[i].Tasks)
	}
	return out
}

// Quarantined returns the tasks whose stored status matched no configured
// column. They are excluded from every column but kept visible here so bad
// data is not silently lost.
func (c *Controller) Quarantined() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Task
	for _, task := range c.tasks {
		if !c.knownStatusLocked(task.Status) {
			out = append(out, task)
		}
	}
	return out
}

func (c *Controller) quarantinedLocked() int {
	n := 0
	for _, task := range c.tasks {
		if !c.knownStatusLocked(task.Status) {
			n++
		}
	}
	return n
}

func (c *Controller) knownStatusLocked(s domain.Status) bool {
	for _, col := range c.columns {
		if s == col {
			return true
		}
	}
	return false
}

// BeginDrag records the task currently being dragged.
func (c *Controller) BeginDrag(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draggingID = id
}

// DraggingID returns the id of the card currently being dragged, if any.
func (c *Controller) DraggingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draggingID
}

// CompleteDrag finishes the current drag gesture over the named column.
// The drag id is cleared unconditionally, whatever the outcome.
func (c *Controller) CompleteDrag(ctx context.Context, targetColumn string) error {
	c.mu.Lock()
	id := c.draggingID
	c.draggingID = ""
	c.mu.Unlock()

	if id == "" || targetColumn == "" {
		return nil
	}
	return c.Move(ctx, id, targetColumn)
}

// Move transfers the task to the named column. Dropping a task on a column
// it is already in, on an unknown column, or moving an unknown task is a
// no-op with no remote call.
func (c *Controller) Move(ctx context.Context, id, targetColumn string) error {
	target, ok := domain.ParseStatus(targetColumn)
	if !ok || !c.knownColumn(target) {
		c.logger.WithField("column", targetColumn).Debug("drop target is not a configured column")
		return nil
	}

	unlock := c.taskLocks.acquire(id)
	defer unlock()

	c.mu.Lock()
	task, found := c.findLocked(id)
	c.mu.Unlock()
	if !found || task.Status == target {
		return nil
	}

	patch := domain.TaskPatch{Status: &target}
	if err := c.store.UpdateTask(ctx, id, patch); err != nil {
		c.logger.WithError(err).WithField("task", id).Error("move failed")
		c.notify.Failure("Failed to move task")
		return err
	}

	c.applyPatch(id, patch)
	c.notify.Success("Task moved to " + string(target))
	c.publishEvent(domain.TaskMoved, id, moveEventData{To: target})
	return nil
}

// Create validates and persists a new task in the named column, then
// appends the store's canonical record to the collection.
func (c *Controller) Create(ctx context.Context, column, title, description string) (domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, ErrEmptyTitle
	}
	status, ok := domain.ParseStatus(column)
	if !ok || !c.knownColumn(status) {
		return domain.Task{}, ErrUnknownColumn
	}

	candidate := domain.NewTask{
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      status,
		Priority:    domain.PriorityMedium,
	}
	task, err := c.store.InsertTask(ctx, candidate)
	if err != nil {
		c.logger.WithError(err).Error("create failed")
		c.notify.Failure("Failed to create task")
		return domain.Task{}, err
	}

	c.mu.Lock()
	c.tasks = append(c.tasks, task)
	c.mu.Unlock()

	c.notify.Success("Task created")
	c.publishEvent(domain.TaskCreated, task.ID, task)
	return task, nil
}

// Edit persists a partial update and merges it into the local copy in
// place, preserving all unmodified fields and the task's position.
func (c *Controller) Edit(ctx context.Context, id string, p domain.TaskPatch) error {
	if p.Title != nil {
		trimmed := strings.TrimSpace(*p.Title)
		if trimmed == "" {
			return ErrEmptyTitle
		}
		p.Title = &trimmed
	}
	if p.Description != nil {
		trimmed := strings.TrimSpace(*p.Description)
		p.Description = &trimmed
	}
	if p.IsEmpty() {
		return nil
	}

	unlock := c.taskLocks.acquire(id)
	defer unlock()

	if err := c.store.UpdateTask(ctx, id, p); err != nil {
		c.logger.WithError(err).WithField("task", id).Error("edit failed")
		c.notify.Failure("Failed to update task")
		return err
	}

	c.applyPatch(id, p)
	c.notify.Success("Task updated")
	c.publishEvent(domain.TaskUpdated, id, p)
	return nil
}

// Delete removes the task remotely, then locally. If the id is not in the
// local collection the removal is a no-op.
func (c *Controller) Delete(ctx context.Context, id string) error {
	unlock := c.taskLocks.acquire(id)
	defer unlock()

	if err := c.store.DeleteTask(ctx, id); err != nil {
		c.logger.WithError(err).WithField("task", id).Error("delete failed")
		c.notify.Failure("Failed to delete task")
		return err
	}

	c.mu.Lock()
	for i, task := range c.tasks {
		if task.ID == id {
			c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.notify.Success("Task deleted")
	c.publishEvent(domain.TaskDeleted, id, nil)
	return nil
}

func (c *Controller) knownColumn(s domain.Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.knownStatusLocked(s)
}

func (c *Controller) findLocked(id string) (domain.Task, bool) {
	for _, task := range c.tasks {
		if task.ID == id {
			return task, true
		}
	}
	return domain.Task{}, false
}

// applyPatch merges the confirmed patch into the local copy in place.
func (c *Controller) applyPatch(id string, p domain.TaskPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			p.Apply(&c.tasks[i])
			return
		}
	}
}

type moveEventData struct {
	To domain.Status `json:"to"`
}
