// Package gateway talks to the remote SpaceBot question-answering service and
// normalizes every failure mode into a single error type. The caller decides
// how a failure is surfaced; the gateway never retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBodySize bounds how much of an error response is read for detail
// extraction.
const maxErrorBodySize = 64 << 10 // 64KB

// Error carries a human-readable cause for a failed gateway call.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// Client communicates with the SpaceBot backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the given backend base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type askRequest struct {
	Query string `json:"query"`
}

// askResponse mirrors the JSON returned by POST /api/chat. The response field
// may be a single string or a list of strings; it is validated here so
// downstream code only ever sees []string.
type askResponse struct {
	Response json.RawMessage `json:"response"`
	ErrorMsg string          `json:"error"`
}

// Ask sends the raw user query and returns the answer as display lines.
// Any transport, status, or shape failure comes back as *Error.
func (c *Client) Ask(ctx context.Context, query string) ([]string, error) {
	payload, err := json.Marshal(askRequest{Query: query})
	if err != nil {
		return nil, &Error{Detail: "encoding query", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Detail: "creating request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Detail: "backend not reachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &Error{Detail: fmt.Sprintf("backend returned %d: %s", resp.StatusCode, errorDetail(resp.Header.Get("Content-Type"), body))}
	}

	var decoded askResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Detail: "invalid response format from server", Err: err}
	}
	return parseResponseLines(decoded.Response)
}

// parseResponseLines validates the duck-typed response field once, at the
// boundary.
func parseResponseLines(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, &Error{Detail: "invalid response format from server: missing response field"}
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}

	return nil, &Error{Detail: "invalid response format from server: response is neither string nor list"}
}

// healthURL is informational only; a failing probe never gates chat.
func (c *Client) healthURL() string { return c.baseURL + "/api/health" }

// Health performs the read-only health probe and returns the backend's
// arbitrary JSON payload for diagnostic logging.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL(), nil)
	if err != nil {
		return nil, &Error{Detail: "creating request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Detail: "backend not reachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Detail: fmt.Sprintf("health probe returned %d", resp.StatusCode)}
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Detail: "decoding health payload", Err: err}
	}
	return payload, nil
}
