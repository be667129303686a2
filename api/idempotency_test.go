package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"board-api/domain"
)

func newTestDeduper(t *testing.T) *RedisDeduper {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return NewRedisDeduper(client, time.Minute)
}

func TestRedisDeduperAddAndRemove(t *testing.T) {
	deduper := newTestDeduper(t)
	ctx := context.Background()

	added, err := deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !added {
		t.Fatal("expected key to be newly added")
	}

	again, err := deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if again {
		t.Fatal("expected duplicate on second add")
	}

	if err := deduper.Remove(ctx, "user", "k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	readded, err := deduper.Add(ctx, "user", "k1")
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if !readded {
		t.Fatal("expected key to be addable after removal")
	}
}

func TestRedisDeduperNamespacesUsers(t *testing.T) {
	deduper := newTestDeduper(t)
	ctx := context.Background()

	if added, _ := deduper.Add(ctx, "alice", "k1"); !added {
		t.Fatal("expected alice's key to be added")
	}
	if added, _ := deduper.Add(ctx, "bob", "k1"); !added {
		t.Fatal("the same key for another user must not collide")
	}
}

func TestDuplicateMutationRejected(t *testing.T) {
	store := newMockStorage(domain.Task{ID: "t1", Title: "x", Status: domain.StatusTodo})
	e := newTestServer(t, store, newTestDeduper(t))

	headers := map[string]string{idempotencyKeyHeader: "req-1"}
	rec := doRequest(e, http.MethodPost, "/api/tasks/t1/move", `{"to":"Done"}`, headers)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doRequest(e, http.MethodPost, "/api/tasks/t1/move", `{"to":"Todo"}`, headers)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate key, got %d", rec.Code)
	}
	if store.updateCalls != 1 {
		t.Fatalf("duplicate reached the store: %d calls", store.updateCalls)
	}
}

func TestFailedMutationReleasesIdempotencyKey(t *testing.T) {
	store := newMockStorage(domain.Task{ID: "t1", Title: "x", Status: domain.StatusTodo})
	store.updateErr = errors.New("throttled")
	e := newTestServer(t, store, newTestDeduper(t))

	headers := map[string]string{idempotencyKeyHeader: "req-1"}
	rec := doRequest(e, http.MethodPost, "/api/tasks/t1/move", `{"to":"Done"}`, headers)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	store.mu.Lock()
	store.updateErr = nil
	store.mu.Unlock()

	rec = doRequest(e, http.MethodPost, "/api/tasks/t1/move", `{"to":"Done"}`, headers)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("retry with same key should succeed, got %d", rec.Code)
	}
}
