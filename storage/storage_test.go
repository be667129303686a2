package storage

import (
	"encoding/json"
	"errors"
	"testing"

	"board-api/domain"
)

func TestTaskEntityDecode(t *testing.T) {
	raw := []byte(`{
		"PartitionKey": "u1",
		"RowKey": "task-1",
		"Title": "Buy milk",
		"Description": "2 liters",
		"Status": "in_progress",
		"Priority": "HIGH",
		"Assignee": "ana",
		"CreatedAt": "1700000000000000000",
		"CreatedAt@odata.type": "Edm.Int64"
	}`)

	var ent taskEntity
	if err := json.Unmarshal(raw, &ent); err != nil {
		t.Fatalf("unmarshal entity: %v", err)
	}
	task := ent.toTask()

	if task.ID != "task-1" || task.Title != "Buy milk" || task.Description != "2 liters" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Status != domain.StatusInProgress {
		t.Fatalf("status not parsed: %q", task.Status)
	}
	if task.Priority != domain.PriorityHigh {
		t.Fatalf("priority not parsed: %q", task.Priority)
	}
	if task.CreatedAt != 1700000000000000000 {
		t.Fatalf("created at not parsed: %d", task.CreatedAt)
	}
}

func TestTaskEntityDecodeQuarantinesUnknownStatus(t *testing.T) {
	raw := []byte(`{"PartitionKey":"u1","RowKey":"task-2","Title":"x","Status":"archived"}`)

	var ent taskEntity
	if err := json.Unmarshal(raw, &ent); err != nil {
		t.Fatalf("unmarshal entity: %v", err)
	}
	if got := ent.toTask().Status; got != domain.StatusUnknown {
		t.Fatalf("expected unknown status, got %q", got)
	}
}

func TestStoreErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := storeError("list tasks", cause)

	if !IsStoreError(err) {
		t.Fatalf("expected StoreError, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not wrapped")
	}
	if storeError("noop", nil) != nil {
		t.Fatal("nil cause must stay nil")
	}
}

func TestNextTimestampMonotonic(t *testing.T) {
	prev := nextTimestamp()
	for i := 0; i < 1000; i++ {
		ts := nextTimestamp()
		if ts <= prev {
			t.Fatalf("timestamp not increasing: %d after %d", ts, prev)
		}
		prev = ts
	}
}
