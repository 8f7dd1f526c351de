// Package remote talks to the spreadsheet-backed entity API. The API is
// action-addressed: one endpoint, the operation named in the query string.
// List calls are plain GETs; mutations send their JSON payload urlencoded in
// the query because the upstream script loses POST bodies across redirects.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
)

const responseMaxSize = 4 << 20

// Client calls the remote entity CRUD API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given endpoint URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// MutationResult is the remote's uniform answer to a mutating call.
type MutationResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error reports a failed remote call with the action that failed.
type Error struct {
	Action  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote: %s failed: %s", e.Action, e.Message)
}

func (c *Client) get(ctx context.Context, action string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	body, err := c.do(req, action)
	if err != nil {
		return err
	}
	if err := sonic.ConfigStd.Unmarshal(body, out); err != nil {
		return &Error{Action: action, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// mutate sends an action with a JSON payload and checks the uniform
// success/error envelope.
func (c *Client) mutate(ctx context.Context, action string, payload any) (MutationResult, error) {
	data, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return MutationResult{}, err
	}
	params := url.Values{}
	params.Set("action", action)
	params.Set("payload", string(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return MutationResult{}, err
	}
	body, err := c.do(req, action)
	if err != nil {
		return MutationResult{}, err
	}

	var result MutationResult
	if err := sonic.ConfigStd.Unmarshal(body, &result); err != nil {
		return MutationResult{}, &Error{Action: action, Message: "malformed response: " + err.Error()}
	}
	if result.Error != "" && !result.Success {
		return result, &Error{Action: action, Message: result.Error}
	}
	return result, nil
}

func (c *Client) do(req *http.Request, action string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Action: action, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseMaxSize))
	if err != nil {
		return nil, &Error{Action: action, Message: err.Error()}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Action: action, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return body, nil
}
