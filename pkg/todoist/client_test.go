package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestSort(t *testing.T) {
	tasks := []Task{
		{ID: "b", Priority: 4, Order: 1, Due: &Due{Date: "2024-03-06"}}, // overdue, no time
		{ID: "a", Priority: 1, Order: 2, Due: &Due{Date: "2024-03-07", Datetime: "2024-03-07T09:00:00"}},
		{ID: "c", Priority: 2, Order: 3, Due: &Due{Date: "2024-03-07", Datetime: "2024-03-07T10:00:00"}},
		{ID: "d", Priority: 3, Order: 4, Due: &Due{Date: "2024-03-07", Datetime: "2024-03-07T10:00:00"}},
	}
	Sort(tasks)

	want := []string{"a", "d", "c", "b"}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("position %d: got %s, want %s (order: %v)", i, tasks[i].ID, id, ids(tasks))
		}
	}
}

func TestSortOrderTieBreak(t *testing.T) {
	tasks := []Task{
		{ID: "second", Priority: 1, Order: 7},
		{ID: "first", Priority: 1, Order: 2},
	}
	Sort(tasks)
	if tasks[0].ID != "first" {
		t.Errorf("expected upstream order to break ties, got %v", ids(tasks))
	}
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}

func TestListActionable(t *testing.T) {
	var gotFilter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		gotFilter = r.URL.Query().Get("filter")
		json.NewEncoder(w).Encode([]Task{
			{ID: "later", Priority: 1, Due: &Due{Datetime: "2024-03-07T15:00:00"}},
			{ID: "soon", Priority: 1, Due: &Due{Datetime: "2024-03-07T09:00:00"}},
		})
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("secret", srv.URL)
	tasks, err := client.ListActionable(context.Background(), "today")
	if err != nil {
		t.Fatalf("ListActionable failed: %v", err)
	}

	if gotFilter != "(today | overdue) & (assigned to:me | !assigned)" {
		t.Errorf("unexpected filter %q", gotFilter)
	}
	if len(tasks) != 2 || tasks[0].ID != "soon" {
		t.Errorf("expected tasks sorted by due time, got %v", ids(tasks))
	}
}

func TestGetTaskNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("secret", srv.URL)
	_, err := client.GetTask(context.Background(), "gone")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("secret", srv.URL)
	err := client.Complete(context.Background(), "1")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", upstream.StatusCode)
	}
}

func TestPostponeNoOpWithoutDue(t *testing.T) {
	var updates int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			updates++
			return
		}
		json.NewEncoder(w).Encode(Task{ID: "1", Content: "no due"})
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("secret", srv.URL)
	applied, err := client.Postpone(context.Background(), "1", "2024-03-08", nil)
	if err != nil {
		t.Fatalf("Postpone failed: %v", err)
	}
	if applied {
		t.Error("postpone of a due-less task must report not applied")
	}
	if updates != 0 {
		t.Errorf("expected no upstream write for task without due, got %d", updates)
	}
}

func TestPostponeNoOpWhenCompleted(t *testing.T) {
	var updates int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			updates++
			return
		}
		json.NewEncoder(w).Encode(Task{ID: "1", IsCompleted: true, Due: &Due{Date: "2024-03-07"}})
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("secret", srv.URL)
	applied, err := client.Postpone(context.Background(), "1", "2024-03-08", nil)
	if err != nil {
		t.Fatalf("Postpone failed: %v", err)
	}
	if applied {
		t.Error("postpone of a completed task must report not applied")
	}
	if updates != 0 {
		t.Errorf("expected no upstream write for completed task, got %d", updates)
	}
}

func TestPostponePreservesTimeOfDay(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected %s request", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	known := &Task{ID: "1", Due: &Due{Date: "2024-03-07", Datetime: "2024-03-07T09:30:00"}}
	client := NewClientWithBaseURL("secret", srv.URL)
	applied, err := client.Postpone(context.Background(), "1", "2024-03-08", known)
	if err != nil {
		t.Fatalf("Postpone failed: %v", err)
	}
	if !applied {
		t.Error("successful postpone must report applied")
	}

	if got := body["due_datetime"]; got != "2024-03-08T09:30:00" {
		t.Errorf("due_datetime = %q, want 2024-03-08T09:30:00", got)
	}
	if _, ok := body["due_date"]; ok {
		t.Error("due_date should not be set when the task has a due time")
	}
}

func TestPostponeRecurringKeepsPhrase(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	known := &Task{ID: "1", Due: &Due{Date: "2024-03-07", String: "every monday", IsRecurring: true}}
	client := NewClientWithBaseURL("secret", srv.URL)
	applied, err := client.Postpone(context.Background(), "1", "2024-03-11", known)
	if err != nil {
		t.Fatalf("Postpone failed: %v", err)
	}
	if !applied {
		t.Error("successful postpone must report applied")
	}

	if body["due_string"] != "every monday" {
		t.Errorf("due_string = %q, want the original recurrence phrase", body["due_string"])
	}
	if body["due_date"] != "2024-03-11" {
		t.Errorf("due_date = %q, want 2024-03-11", body["due_date"])
	}
}

func TestFilterIsEscaped(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]Task{})
	}))
	defer srv.Close()

	client := NewClientWithBaseURL("secret", srv.URL)
	if _, err := client.ListActionable(context.Background(), "tomorrow"); err != nil {
		t.Fatalf("ListActionable failed: %v", err)
	}
	decoded, err := url.QueryUnescape(rawQuery)
	if err != nil {
		t.Fatalf("query was not escaped properly: %v", err)
	}
	if decoded == rawQuery {
		t.Errorf("filter query does not appear to be escaped: %q", rawQuery)
	}
}
