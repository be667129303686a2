package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"

	"board-api/domain"
)

const edmInt64 = "Edm.Int64"

// eventQueue is the subset of the azqueue client used for publishing board
// events.
type eventQueue interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Store provides access to the remote task table and the board event queue.
type Store struct {
	taskTable  *aztables.Client
	eventQueue eventQueue
}

// New creates a Store from the given connection string.
func New(connStr, tasksTable, eventsQueue string) (*Store, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	tt := svc.NewClient(tasksTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Store{taskTable: tt, eventQueue: eq}, nil
}

type taskEntity struct {
	aztables.Entity
	Title         string `json:"Title"`
	Description   string `json:"Description"`
	Status        string `json:"Status"`
	Priority      string `json:"Priority"`
	Assignee      string `json:"Assignee"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

func (e taskEntity) toTask() domain.Task {
	// Unparseable statuses become StatusUnknown; the board quarantines
	// them instead of erroring.
	status, _ := domain.ParseStatus(e.Status)
	priority, _ := domain.ParsePriority(e.Priority)
	return domain.Task{
		ID:          e.RowKey,
		Title:       e.Title,
		Description: e.Description,
		Status:      status,
		Priority:    priority,
		Assignee:    e.Assignee,
		CreatedAt:   e.CreatedAt,
	}
}

// ListTasks retrieves all tasks for the provided user, ascending by
// creation time.
func (s *Store) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, storeError("list tasks", err)
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, storeError("decode task", err)
			}
			tasks = append(tasks, ent.toTask())
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt != tasks[j].CreatedAt {
			return tasks[i].CreatedAt < tasks[j].CreatedAt
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

// InsertTask persists a new task and returns the canonical record with the
// store-assigned id and creation timestamp.
func (s *Store) InsertTask(ctx context.Context, userID string, n domain.NewTask) (domain.Task, error) {
	ent := taskEntity{
		Entity:        aztables.Entity{PartitionKey: userID, RowKey: uuid.NewString()},
		Title:         n.Title,
		Description:   n.Description,
		Status:        string(n.Status),
		Priority:      string(n.Priority),
		CreatedAt:     nextTimestamp(),
		CreatedAtType: edmInt64,
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return domain.Task{}, storeError("encode task", err)
	}
	if _, err := s.taskTable.AddEntity(ctx, data, nil); err != nil {
		return domain.Task{}, storeError("insert task", err)
	}
	return ent.toTask(), nil
}

// taskUpdateEntity carries a partial merge; nil fields stay untouched
// server-side.
type taskUpdateEntity struct {
	aztables.Entity
	Title       *string `json:"Title,omitempty"`
	Description *string `json:"Description,omitempty"`
	Status      *string `json:"Status,omitempty"`
	Priority    *string `json:"Priority,omitempty"`
	Assignee    *string `json:"Assignee,omitempty"`
}

// UpdateTask merges the set patch fields into the stored task.
func (s *Store) UpdateTask(ctx context.Context, userID, id string, p domain.TaskPatch) error {
	upd := taskUpdateEntity{
		Entity:      aztables.Entity{PartitionKey: userID, RowKey: id},
		Title:       p.Title,
		Description: p.Description,
		Assignee:    p.Assignee,
	}
	if p.Status != nil {
		v := string(*p.Status)
		upd.Status = &v
	}
	if p.Priority != nil {
		v := string(*p.Priority)
		upd.Priority = &v
	}
	data, err := json.Marshal(upd)
	if err != nil {
		return storeError("encode update", err)
	}
	mode := aztables.UpdateModeMerge
	if _, err := s.taskTable.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: mode}); err != nil {
		return storeError("update task", err)
	}
	return nil
}

// DeleteTask removes the stored task.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	if _, err := s.taskTable.DeleteEntity(ctx, userID, id, nil); err != nil {
		return storeError("delete task", err)
	}
	return nil
}

// EnqueueEvents publishes the given board events to the event queue,
// fanning out up to queueConcurrency in-flight messages.
func (s *Store) EnqueueEvents(ctx context.Context, userID string, events []domain.BoardEvent) error {
	return enqueueEvents(ctx, s.eventQueue, userID, events, queueConcurrencyForCPU(numCPU()))
}

func enqueueEvents(ctx context.Context, q eventQueue, userID string, events []domain.BoardEvent, concurrency int) error {
	if len(events) == 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, ev := range events {
		env := domain.BoardEventEnvelope{UserID: userID, Event: ev}
		data, err := json.Marshal(env)
		if err != nil {
			return storeError("encode event", err)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(payload string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := q.EnqueueMessage(ctx, payload, nil); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(string(data))
	}
	wg.Wait()
	return storeError("enqueue events", firstErr)
}

var lastTimestamp int64

// nextTimestamp returns a strictly increasing unix-nano timestamp so two
// creations in the same nanosecond still get distinct CreatedAt values.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}
