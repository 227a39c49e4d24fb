// Package kiosk connects the device to the kiosk web API: it forwards
// status notifications and polls for queued orders and trigger commands.
package kiosk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brewcode-go/errcode"
	"brewcode-go/types"
)

const (
	pathStatus  = "/api/hardware/status"
	pathOrders  = "/api/hardware/orders"
	pathTrigger = "/api/hardware/trigger"

	defaultRequestTimeout = 5 * time.Second
	maxBody               = 1 << 20
)

// Client is a thin JSON client for the kiosk hardware endpoints.
type Client struct {
	base       string
	apiKey     string
	hardwareID string
	hc         *http.Client
}

func NewClient(cfg types.KioskConfig, hc *http.Client) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	switch {
	case hc == nil:
		hc = &http.Client{Timeout: timeout}
	case hc.Timeout == 0:
		// Copy so the caller's client keeps its own settings.
		cp := *hc
		cp.Timeout = timeout
		hc = &cp
	}
	return &Client{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		hardwareID: cfg.HardwareID,
		hc:         hc,
	}
}

type remoteOrder struct {
	ID            string   `json:"id"`
	OrderID       string   `json:"orderId"`
	DrinkName     string   `json:"drinkName"`
	Toppings      []string `json:"toppings"`
	Size          string   `json:"size"`
	QueuePosition int      `json:"queuePosition"`
}

type remoteCommand struct {
	ID         string `json:"id"`
	HardwareID string `json:"hardwareId"`
	Action     string `json:"action"`
	OrderID    string `json:"orderId"`
	Params     struct {
		LedPin   int `json:"ledPin"`
		Duration int `json:"duration"`
	} `json:"params"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Order   *remoteOrder   `json:"order,omitempty"`
	Command *remoteCommand `json:"command,omitempty"`
}

// PostStatus reports one stage notification.
func (c *Client) PostStatus(ctx context.Context, u types.StatusUpdate) error {
	if u.HardwareID == "" {
		u.HardwareID = c.hardwareID
	}
	_, err := c.do(ctx, "post_status", http.MethodPost, pathStatus, nil, u)
	return err
}

// PollOrder takes the next queued order, or returns nil when there is none.
// The server assigns the order to this device as a side effect.
func (c *Client) PollOrder(ctx context.Context) (*types.OrderReceived, error) {
	env, err := c.do(ctx, "poll_order", http.MethodGet, pathOrders, c.hwQuery(), nil)
	if err != nil || env.Order == nil {
		return nil, err
	}
	id := env.Order.OrderID
	if id == "" {
		id = env.Order.ID
	}
	if id == "" {
		return nil, errcode.New(errcode.BadResponse, "poll_order", "order without id")
	}
	return &types.OrderReceived{
		OrderID:   id,
		DrinkName: env.Order.DrinkName,
		Toppings:  env.Order.Toppings,
		Size:      env.Order.Size,
	}, nil
}

// PollCommand takes the next pending trigger command, or nil.
func (c *Client) PollCommand(ctx context.Context) (*types.Trigger, error) {
	env, err := c.do(ctx, "poll_command", http.MethodGet, pathTrigger, c.hwQuery(), nil)
	if err != nil || env.Command == nil {
		return nil, err
	}
	cmd := env.Command
	return &types.Trigger{
		ID:         cmd.ID,
		HardwareID: cmd.HardwareID,
		Action:     cmd.Action,
		OrderID:    cmd.OrderID,
		LedPin:     cmd.Params.LedPin,
		Duration:   cmd.Params.Duration,
	}, nil
}

// Heartbeat tells the server the device is alive.
func (c *Client) Heartbeat(ctx context.Context) error {
	_, err := c.do(ctx, "heartbeat", http.MethodGet, pathStatus, c.hwQuery(), nil)
	return err
}

func (c *Client) hwQuery() url.Values {
	return url.Values{"hardwareId": {c.hardwareID}}
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body any) (envelope, error) {
	var env envelope

	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return env, errcode.Wrap(errcode.InvalidPayload, op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return env, errcode.Wrap(errcode.InvalidParams, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		var ne net.Error
		if ctx.Err() != nil || (errors.As(err, &ne) && ne.Timeout()) {
			return env, errcode.Wrap(errcode.Timeout, op, err)
		}
		return env, errcode.Wrap(errcode.Unreachable, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return env, errcode.Wrap(errcode.Unreachable, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return env, errcode.New(errcode.Unauthorized, op, "")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_ = json.Unmarshal(raw, &env)
		return env, errcode.New(errcode.BadResponse, op, fmt.Sprintf("http %d %s", resp.StatusCode, env.Error))
	}
	if len(raw) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, errcode.Wrap(errcode.BadResponse, op, err)
	}
	return env, nil
}
