package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotModified signals the store has no newer snapshot than the
	// caller's timestamp; the caller keeps its in-memory copy.
	ErrNotModified = errors.New("storage: snapshot not modified")

	// ErrConflict signals an optimistic-concurrency mismatch: another writer
	// got there first. Re-fetch, re-merge, retry.
	ErrConflict = errors.New("storage: timestamp conflict")
)

// UpstreamError reports a non-2xx response from the storage service.
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("storage: request failed: %s", e.Status)
}

// Snapshot is a stored value with its version timestamp.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	Value     json.RawMessage `json:"value"`
}

type response struct {
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// Client talks to the timestamped key-value store.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a storage client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Get fetches the snapshot under key. With since > 0 the request is
// conditional and ErrNotModified is returned when the store reports no change.
func (c *Client) Get(ctx context.Context, key string, since int64) (*Snapshot, error) {
	url := c.baseURL + "/" + key
	if since > 0 {
		url += "?timestamp=" + strconv.FormatInt(since, 10)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("storage: failed to decode response: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("storage: store rejected read: %s", body.Error)
	}
	return &Snapshot{Timestamp: body.Timestamp, Value: body.Value}, nil
}

// Set writes value under key with version newTimestamp. The write fails with
// ErrConflict when the store's current timestamp differs from
// expectedOldTimestamp, leaving the stored snapshot untouched.
func (c *Client) Set(ctx context.Context, key string, newTimestamp, expectedOldTimestamp int64, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: failed to encode value: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%d?oldTimestamp=%d", c.baseURL, key, newTimestamp, expectedOldTimestamp)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("storage: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("storage: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return ErrConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("storage: failed to decode response: %w", err)
	}
	if !body.OK {
		if strings.Contains(strings.ToLower(body.Error), "conflict") {
			return ErrConflict
		}
		return fmt.Errorf("storage: store rejected write: %s", body.Error)
	}
	return nil
}
