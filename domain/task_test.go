package domain

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
		ok   bool
	}{
		{raw: "Todo", want: StatusTodo, ok: true},
		{raw: "todo", want: StatusTodo, ok: true},
		{raw: " TODO ", want: StatusTodo, ok: true},
		{raw: "In Progress", want: StatusInProgress, ok: true},
		{raw: "in-progress", want: StatusInProgress, ok: true},
		{raw: "IN_PROGRESS", want: StatusInProgress, ok: true},
		{raw: "inprogress", want: StatusInProgress, ok: true},
		{raw: "DONE", want: StatusDone, ok: true},
		{raw: "archived", want: StatusUnknown, ok: false},
		{raw: "", want: StatusUnknown, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseStatus(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("ParseStatus(%q) = %q, %v, want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStatusMatches(t *testing.T) {
	if !StatusTodo.Matches("todo") {
		t.Fatal("expected Todo to match lowercase identifier")
	}
	if StatusTodo.Matches("done") {
		t.Fatal("Todo must not match done")
	}
	if StatusUnknown.Matches("anything") {
		t.Fatal("unknown status must match nothing")
	}
}

func TestParsePriorityDefaultsToMedium(t *testing.T) {
	p, ok := ParsePriority("")
	if !ok || p != PriorityMedium {
		t.Fatalf("ParsePriority(\"\") = %q, %v, want medium", p, ok)
	}
	if _, ok := ParsePriority("urgent"); ok {
		t.Fatal("unknown priority must be rejected")
	}
}

func TestTaskMarshalIncludesStatus(t *testing.T) {
	task := Task{ID: "t1", Title: "Title", Status: StatusTodo, Priority: PriorityMedium}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if !strings.Contains(string(payload), `"status":"Todo"`) {
		t.Fatalf("expected status field to be present, got %s", payload)
	}
}

func TestPatchApplyPreservesUnsetFields(t *testing.T) {
	task := Task{
		ID:          "t1",
		Title:       "Write report",
		Description: "draft",
		Status:      StatusTodo,
		Priority:    PriorityHigh,
		Assignee:    "ana",
		CreatedAt:   42,
	}
	desc := "final draft"
	TaskPatch{Description: &desc}.Apply(&task)

	if task.Description != "final draft" {
		t.Fatalf("description not applied: %q", task.Description)
	}
	if task.ID != "t1" || task.Title != "Write report" || task.Status != StatusTodo ||
		task.Priority != PriorityHigh || task.Assignee != "ana" || task.CreatedAt != 42 {
		t.Fatalf("unrelated fields changed: %+v", task)
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(TaskPatch{}).IsEmpty() {
		t.Fatal("zero patch should be empty")
	}
	s := StatusDone
	if (TaskPatch{Status: &s}).IsEmpty() {
		t.Fatal("patch with status should not be empty")
	}
}
