// Package provider implements the board provider interface: an HTTP JSON
// client for remote boards and an in-memory board for tests and dry runs.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wordflux/boardctl/internal/board"
	"github.com/wordflux/boardctl/internal/output"
	"github.com/wordflux/boardctl/internal/version"
)

const (
	maxRetries = 5
	baseDelay  = 1 * time.Second
	maxJitter  = 100 * time.Millisecond
)

// HTTPClient talks to a remote board provider over HTTP JSON.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	caps       board.Capabilities
	verbose    bool
	backoff    func(attempt int) time.Duration
}

// NewHTTPClient creates a provider client for the given base URL.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		backoff: backoffDelay,
		caps: board.Capabilities{
			Remove:   true,
			Assign:   true,
			Labels:   true,
			Comments: true,
			Priority: true,
			Points:   true,
			DueDates: true,
		},
	}
}

// SetVerbose enables request logging for debugging.
func (c *HTTPClient) SetVerbose(v bool) {
	c.verbose = v
}

// SetCapabilities overrides the advertised capability set, typically from the
// provider's handshake endpoint.
func (c *HTTPClient) SetCapabilities(caps board.Capabilities) {
	c.caps = caps
}

// Capabilities reports the provider's supported optional operations.
func (c *HTTPClient) Capabilities() board.Capabilities {
	return c.caps
}

// GetBoardState fetches the full board snapshot.
func (c *HTTPClient) GetBoardState(ctx context.Context, projectID int64) (*board.State, error) {
	data, err := c.do(ctx, "GET", fmt.Sprintf("/projects/%d/board", projectID), nil)
	if err != nil {
		return nil, err
	}
	var state board.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse board state: %w", err)
	}
	return &state, nil
}

// CreateTask creates a card and returns its id.
func (c *HTTPClient) CreateTask(ctx context.Context, projectID int64, title string, columnID int64, description string) (int64, error) {
	body := map[string]any{
		"title":       title,
		"column_id":   columnID,
		"description": description,
	}
	data, err := c.do(ctx, "POST", fmt.Sprintf("/projects/%d/tasks", projectID), body)
	if err != nil {
		return 0, err
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse create response: %w", err)
	}
	return resp.ID, nil
}

// MoveTask moves a card to a column at a 1-based display position.
func (c *HTTPClient) MoveTask(ctx context.Context, projectID, taskID, columnID int64, position int) error {
	body := map[string]any{
		"column_id": columnID,
		"position":  position,
	}
	_, err := c.do(ctx, "POST", fmt.Sprintf("/projects/%d/tasks/%d/move", projectID, taskID), body)
	return err
}

// UpdateTask applies a partial update.
func (c *HTTPClient) UpdateTask(ctx context.Context, projectID, taskID int64, patch board.TaskPatch) error {
	_, err := c.do(ctx, "PATCH", fmt.Sprintf("/projects/%d/tasks/%d", projectID, taskID), patch)
	return err
}

// RemoveTask deletes a card.
func (c *HTTPClient) RemoveTask(ctx context.Context, taskID int64) error {
	_, err := c.do(ctx, "DELETE", fmt.Sprintf("/tasks/%d", taskID), nil)
	return err
}

// AssignTask assigns a card to a user.
func (c *HTTPClient) AssignTask(ctx context.Context, taskID int64, assignee string) error {
	_, err := c.do(ctx, "POST", fmt.Sprintf("/tasks/%d/assignees", taskID), map[string]any{"assignee": assignee})
	return err
}

// AddTaskLabel attaches a label to a card.
func (c *HTTPClient) AddTaskLabel(ctx context.Context, taskID int64, label string) error {
	_, err := c.do(ctx, "POST", fmt.Sprintf("/tasks/%d/labels", taskID), map[string]any{"label": label})
	return err
}

// RemoveTaskLabel detaches a label from a card.
func (c *HTTPClient) RemoveTaskLabel(ctx context.Context, taskID int64, label string) error {
	_, err := c.do(ctx, "DELETE", fmt.Sprintf("/tasks/%d/labels/%s", taskID, label), nil)
	return err
}

// AddComment posts a comment and returns its id.
func (c *HTTPClient) AddComment(ctx context.Context, taskID int64, content string) (int64, error) {
	data, err := c.do(ctx, "POST", fmt.Sprintf("/tasks/%d/comments", taskID), map[string]any{"content": content})
	if err != nil {
		return 0, err
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse comment response: %w", err)
	}
	return resp.ID, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	url := c.baseURL + path
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		data, err := c.singleRequest(ctx, method, url, body, attempt)
		if err == nil {
			return data, nil
		}

		if provErr, ok := err.(*output.Error); ok && provErr.Retryable {
			lastErr = err

			// The final attempt has no retry left to wait for.
			if attempt == maxRetries {
				break
			}

			delay := c.backoff(attempt)
			if c.verbose {
				fmt.Printf("[boardctl] Retry %d/%d in %v: %s\n", attempt, maxRetries, delay, err)
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		return nil, err
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

func (c *HTTPClient) singleRequest(ctx context.Context, method, url string, body any, attempt int) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = strings.NewReader(string(bodyBytes))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.verbose {
		fmt.Printf("[boardctl] %s %s (attempt %d)\n", method, url, attempt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	if c.verbose {
		fmt.Printf("[boardctl] HTTP %d\n", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return respBody, nil

	case http.StatusTooManyRequests: // 429
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, output.ErrRateLimit(retryAfter)

	case http.StatusUnauthorized: // 401
		return nil, output.ErrAuth("Authentication failed")

	case http.StatusForbidden: // 403
		return nil, output.ErrForbidden("Access denied")

	case http.StatusNotFound: // 404
		return nil, output.ErrNotFound("Resource", url)

	case http.StatusNotImplemented: // 501
		return nil, output.ErrUnsupported(method + " " + url)

	case http.StatusInternalServerError: // 500
		return nil, &output.Error{
			Code:       output.CodeProvider,
			Message:    "Server error (500)",
			HTTPStatus: 500,
			Retryable:  true,
		}

	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout: // 502, 503, 504
		return nil, &output.Error{
			Code:       output.CodeProvider,
			Message:    fmt.Sprintf("Gateway error (%d)", resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			Retryable:  true,
		}

	default:
		respBody, _ := io.ReadAll(resp.Body)
		var provErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &provErr) == nil {
			msg := provErr.Error
			if msg == "" {
				msg = provErr.Message
			}
			if msg != "" {
				return nil, output.ErrProvider(resp.StatusCode, msg)
			}
		}
		return nil, output.ErrProvider(resp.StatusCode, fmt.Sprintf("Request failed (HTTP %d)", resp.StatusCode))
	}
}

func backoffDelay(attempt int) time.Duration {
	// Exponential backoff: base * 2^(attempt-1)
	delay := baseDelay * time.Duration(1<<(attempt-1))

	// Add jitter (0-100ms)
	jitter := time.Duration(rand.Int63n(int64(maxJitter))) //nolint:gosec // G404: Jitter doesn't need crypto rand

	return delay + jitter
}

// parseRetryAfter parses the Retry-After header value.
func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return seconds
	}
	return 0
}
