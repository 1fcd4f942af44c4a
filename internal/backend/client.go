// HTTP client for the order backend, the system of record this core polls
// and mutates but never owns.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mesa/internal/modules/order"
	"mesa/internal/types"
)

var ErrNotFound = errors.New("backend: order not found")

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the given base URL. The timeout guards
// against stalled connections; context cancellation is still honoured per
// request.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) FetchOrders(ctx context.Context) ([]order.Order, error) {
	var out []order.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchOrderByID(ctx context.Context, id types.ID) (*order.Order, error) {
	var out order.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrderState asks the backend to apply a transition and returns the
// order as the backend now sees it.
func (c *Client) UpdateOrderState(ctx context.Context, id types.ID, state order.Status) (*order.Order, error) {
	body := map[string]string{"state": string(state)}
	var out order.Order
	if err := c.do(ctx, http.MethodPatch, "/api/orders/"+id.String()+"/state", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteOrder(ctx context.Context, id types.ID) (bool, error) {
	if err := c.do(ctx, http.MethodDelete, "/api/orders/"+id.String(), nil, nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
			return fmt.Errorf("backend: %s", envelope.Error)
		}
		return fmt.Errorf("backend: %s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("backend: unmarshal response: %w", err)
		}
	}
	return nil
}
