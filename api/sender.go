package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"board-api/domain"
)

type eventJob struct {
	userID string
	events []domain.BoardEvent
}

var (
	once           sync.Once
	jobs           chan eventJob
	workerCount    int
	jobBuf         int
	enqueueTimeout time.Duration
	handoffTimeout time.Duration
	bg             = context.Background()
	globalStore    Storage
	globalLog      *log.Logger
	workerWG       sync.WaitGroup
)

// shutdownEventSender stops worker goroutines and clears shared state. It is intended for tests.
func shutdownEventSender() {
	if jobs != nil {
		close(jobs)
		jobs = nil
	}

	workerWG.Wait()

	globalStore = nil
	globalLog = nil
	workerCount = 0
	jobBuf = 0
	enqueueTimeout = 0
	handoffTimeout = 0
	once = sync.Once{}
	workerWG = sync.WaitGroup{}
}

func initEventSender(store Storage, logger *log.Logger) {
	once.Do(func() {
		if store == nil {
			panic("storage is required")
		}
		if logger == nil {
			panic("logger is required")
		}
		globalStore = store
		globalLog = logger

		workerCount = envInt("EVENTS_WORKERS", 8)
		jobBuf = envInt("EVENTS_BUFFER", 1024)
		enqueueTimeout = envDur("EVENTS_TIMEOUT", 60*time.Second)
		handoffTimeout = envDur("EVENTS_HANDOFF_TIMEOUT", 15*time.Millisecond)

		jobs = make(chan eventJob, jobBuf)
		for i := 0; i < workerCount; i++ {
			workerWG.Add(1)
			go eventWorker(i, jobs)
		}
		globalLog.Infof("event sender started, workers: %d, buffer: %d, timeout: %v, handoff: %v", workerCount, jobBuf, enqueueTimeout, handoffTimeout)
	})
}

func eventWorker(id int, jobCh <-chan eventJob) {
	defer workerWG.Done()
	for j := range jobCh {
		ctx, cancel := context.WithTimeout(bg, enqueueTimeout)
		err := globalStore.EnqueueEvents(ctx, j.userID, j.events)
		cancel()
		if err != nil {
			globalLog.WithError(err).WithFields(log.Fields{
				"worker": id,
				"user":   j.userID,
				"events": len(j.events),
			}).Error("publish board events failed")
		}
	}
}

// tryEnqueueEventJob hands the job to a worker, giving up after the handoff
// timeout when the buffer is saturated.
func tryEnqueueEventJob(j eventJob) bool {
	if jobs == nil {
		return false
	}
	select {
	case jobs <- j:
		return true
	default:
	}
	timer := time.NewTimer(handoffTimeout)
	defer timer.Stop()
	select {
	case jobs <- j:
		return true
	case <-timer.C:
		return false
	}
}

// eventSink publishes one user's board events through the shared sender,
// falling back to an inline send when the buffer is saturated.
type eventSink struct {
	userID string
}

func (s eventSink) Publish(ev domain.BoardEvent) {
	job := eventJob{userID: s.userID, events: []domain.BoardEvent{ev}}
	if tryEnqueueEventJob(job) {
		return
	}

	store := globalStore
	logger := globalLog
	if store == nil {
		return
	}
	if logger != nil {
		logger.Warn("event buffer saturated; publishing inline")
	}
	go func() {
		ctx, cancel := context.WithTimeout(bg, enqueueTimeout)
		defer cancel()
		if err := store.EnqueueEvents(ctx, job.userID, job.events); err != nil && logger != nil {
			logger.WithError(err).Error("inline event publish failed")
		}
	}()
}
