package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brewcode-go/errcode"
	"brewcode-go/types"
)

// Client talks to a running controller's local API.
type Client struct {
	Base   string
	APIKey string
	HTTP   *http.Client
}

func NewClient(base, apiKey string) *Client {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		Base:   strings.TrimRight(base, "/"),
		APIKey: apiKey,
		HTTP:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) State(ctx context.Context) (types.BrewState, error) {
	var st types.BrewState
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &st)
	return st, err
}

// Order starts a run; an empty id lets the controller pick one.
func (c *Client) Order(ctx context.Context, orderID string) (string, error) {
	var resp orderResponse
	err := c.do(ctx, http.MethodPost, "/api/orders", types.OrderReceived{OrderID: orderID}, &resp)
	return resp.OrderID, err
}

func (c *Client) Trigger(ctx context.Context, t types.Trigger) error {
	return c.do(ctx, http.MethodPost, "/api/trigger", t, nil)
}

func (c *Client) Abort(ctx context.Context, reason string) error {
	return c.do(ctx, http.MethodPost, "/api/abort", types.Abort{Reason: reason}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errcode.Wrap(errcode.Unreachable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e types.ErrorReply
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return errcode.New(errcode.Code(e.Error), path, fmt.Sprintf("http %d", resp.StatusCode))
		}
		return errcode.New(errcode.BadResponse, path, fmt.Sprintf("http %d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errcode.Wrap(errcode.BadResponse, path, err)
	}
	return nil
}
