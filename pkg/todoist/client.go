package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.todoist.com/rest/v2"

// ErrNotFound is returned when a referenced task does not exist upstream.
var ErrNotFound = errors.New("todoist: task not found")

// UpstreamError reports a non-2xx response from the Todoist API. Callers
// treat it as transient and surface it rather than touching local state.
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("todoist: upstream request failed: %s", e.Status)
}

// Client is a Todoist REST v2 API client.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a client authenticating with the given API token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL is NewClient pointed at a non-default endpoint.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// ListActionable fetches tasks due on the requested day ("today" or
// "tomorrow") or overdue, limited to tasks assigned to the caller or
// unassigned, sorted canonically (see Sort).
func (c *Client) ListActionable(ctx context.Context, when string) ([]Task, error) {
	if when == "" {
		when = "today"
	}
	filter := fmt.Sprintf("(%s | overdue) & (assigned to:me | !assigned)", when)
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "tasks?filter="+url.QueryEscape(filter), nil, &tasks); err != nil {
		return nil, err
	}
	Sort(tasks)
	return tasks, nil
}

// GetTask fetches a single task by id. Returns ErrNotFound if the task is
// absent upstream.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, "tasks/"+id, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Complete closes the task upstream.
func (c *Client) Complete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "tasks/"+id+"/close", nil, nil)
}

// Reopen reopens a previously closed task upstream.
func (c *Client) Reopen(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "tasks/"+id+"/reopen", nil, nil)
}

// Postpone reschedules the task to dueDate (yyyy-mm-dd), preserving the
// recurrence phrasing of recurring tasks and the time-of-day of timed ones.
// When known is nil the current task is fetched first; a task with no due
// date or already completed is left alone, reported by a false return so the
// caller can undo its optimistic edit.
func (c *Client) Postpone(ctx context.Context, id, dueDate string, known *Task) (bool, error) {
	task := known
	if task == nil {
		fetched, err := c.GetTask(ctx, id)
		if err != nil {
			return false, err
		}
		if fetched.IsCompleted {
			return false, nil
		}
		task = fetched
	}
	if task.Due == nil {
		return false, nil
	}

	payload := map[string]string{}
	if task.Due.IsRecurring {
		payload["due_string"] = task.Due.String
	}
	if task.Due.Datetime != "" {
		// Keep the original time-of-day, move only the date.
		parts := strings.SplitN(task.Due.Datetime, "T", 2)
		payload["due_datetime"] = dueDate + "T" + parts[len(parts)-1]
	} else {
		payload["due_date"] = dueDate
	}
	if err := c.do(ctx, http.MethodPost, "tasks/"+id, payload, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("todoist: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return fmt.Errorf("todoist: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("todoist: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("todoist: failed to decode response: %w", err)
	}
	return nil
}
