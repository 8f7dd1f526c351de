// Package calendar talks to the external calendar bridge. The bridge fronts
// the actual provider: listing is a GET with a time range, mutations are
// action-tagged POSTs. An unauthenticated bridge answers 401, which callers
// treat as "calendar unavailable" rather than a hard failure.
package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
)

// ErrUnauthenticated reports that the bridge has no usable provider session.
var ErrUnauthenticated = errors.New("calendar: not authenticated")

// ErrNotFound reports that the referenced event no longer exists at the
// provider. Stale local references surface as this error.
var ErrNotFound = errors.New("calendar: event not found")

const responseMaxSize = 1 << 20

// Client calls the calendar bridge over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a calendar client for the given bridge URL. The token, when
// non-empty, is sent as a bearer credential.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type listResponse struct {
	Events []listItem `json:"events"`
	Error  string     `json:"error,omitempty"`
}

// ListEvents returns the provider's events within [timeMin, timeMax].
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("timeMin", timeMin.Format(time.RFC3339))
	q.Set("timeMax", timeMax.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := sonic.ConfigStd.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("calendar: decode list response: %w", err)
	}
	events := make([]Event, 0, len(resp.Events))
	for _, it := range resp.Events {
		events = append(events, it.toEvent())
	}
	return events, nil
}

type mutateRequest struct {
	Action  string     `json:"action"`
	EventID string     `json:"eventId,omitempty"`
	Event   *wireEvent `json:"event,omitempty"`
}

type mutateResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Event   *struct {
		ID string `json:"id"`
	} `json:"event,omitempty"`
}

// CreateEvent creates an event and returns it with the provider-assigned id.
func (c *Client) CreateEvent(ctx context.Context, event Event) (Event, error) {
	we := toWire(event)
	resp, err := c.mutate(ctx, mutateRequest{Action: "create", Event: &we})
	if err != nil {
		return Event{}, err
	}
	if resp.Event == nil || resp.Event.ID == "" {
		return Event{}, errors.New("calendar: create response carried no event id")
	}
	event.ID = resp.Event.ID
	return event, nil
}

// UpdateEvent patches an existing event.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, event Event) (Event, error) {
	we := toWire(event)
	if _, err := c.mutate(ctx, mutateRequest{Action: "update", EventID: eventID, Event: &we}); err != nil {
		return Event{}, err
	}
	event.ID = eventID
	return event, nil
}

// DeleteEvent removes an event by id.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := c.mutate(ctx, mutateRequest{Action: "delete", EventID: eventID})
	return err
}

func (c *Client) mutate(ctx context.Context, mr mutateRequest) (mutateResponse, error) {
	payload, err := sonic.ConfigStd.Marshal(mr)
	if err != nil {
		return mutateResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return mutateResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return mutateResponse{}, err
	}
	var resp mutateResponse
	if err := sonic.ConfigStd.Unmarshal(body, &resp); err != nil {
		return mutateResponse{}, fmt.Errorf("calendar: decode %s response: %w", mr.Action, err)
	}
	if resp.Error != "" && !resp.Success {
		return resp, fmt.Errorf("calendar: %s failed: %s", mr.Action, resp.Error)
	}
	return resp, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseMaxSize))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthenticated
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("calendar: bridge returned %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
