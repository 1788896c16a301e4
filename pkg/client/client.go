// Package client is the typed SDK for the civic governance backend. Reads
// are fail-soft: on any failure they log a warning and return an empty
// default so dashboards keep rendering. Writes are fail-hard: errors
// propagate to the caller, which is expected to surface them and leave its
// local state untouched.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL points at the local demo backend.
	DefaultBaseURL = "http://localhost:3001/api"

	defaultTimeout = 10 * time.Second
)

// RequestError is a failed write call: either the backend rejected the
// request or it was unreachable.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("request failed: status=%d message=%s", e.StatusCode, e.Message)
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger replaces the default production logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.rest.SetTimeout(d) }
}

// Client talks to the governance backend. The zero value is not usable;
// construct with New.
type Client struct {
	rest      *resty.Client
	logger    *zap.Logger
	baseURL   string
	healthURL string
	wsURL     string

	channelOnce sync.Once
	channel     Channel

	// Resource services.
	Policies     *PolicyService
	Complaints   *ComplaintService
	Proposals    *ProposalService
	Transactions *TransactionService
	Analytics    *AnalyticsService
}

// New creates a client for the given base URL. An empty baseURL selects the
// localhost demo backend, so the SDK runs with no configuration at all.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	// The liveness probe and the push channel live on the host root,
	// outside the /api prefix.
	wsScheme := "ws"
	if u.Scheme == "https" {
		wsScheme = "wss"
	}

	c := &Client{
		rest:      resty.New().SetBaseURL(baseURL).SetTimeout(defaultTimeout).SetHeader("Content-Type", "application/json"),
		logger:    zap.NewNop(),
		baseURL:   baseURL,
		healthURL: fmt.Sprintf("%s://%s/health", u.Scheme, u.Host),
		wsURL:     fmt.Sprintf("%s://%s/ws", wsScheme, u.Host),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Policies = &PolicyService{c: c}
	c.Complaints = &ComplaintService{c: c}
	c.Proposals = &ProposalService{c: c}
	c.Transactions = &TransactionService{c: c}
	c.Analytics = &AnalyticsService{c: c}
	return c, nil
}

// CheckHealth probes the backend liveness endpoint. It never returns an
// error: anything short of a 2xx response means false. Consumers use it to
// drive a connected/disconnected badge, not to gate functional calls.
func (c *Client) CheckHealth(ctx context.Context) bool {
	resp, err := c.rest.R().SetContext(ctx).Get(c.healthURL)
	if err != nil {
		c.logger.Warn("health check failed", zap.Error(err))
		return false
	}
	return resp.IsSuccess()
}

// errorMessage pulls a human-readable message out of an error response body.
func errorMessage(body []byte, status string) string {
	for _, field := range []string{"error", "message"} {
		if msg := gjson.GetBytes(body, field); msg.Exists() {
			return msg.String()
		}
	}
	return status
}

// safeGet performs a fail-soft read. On any failure — unreachable backend
// or an error status — it logs a warning and reports false; the caller
// then returns its empty default. The warning log is the only place the
// "empty result" / "backend unreachable" distinction survives.
func (c *Client) safeGet(ctx context.Context, path string, out any) bool {
	resp, err := c.rest.R().SetContext(ctx).Get(path)
	if err != nil {
		c.logger.Warn("read failed, returning empty default",
			zap.String("path", path), zap.Error(err))
		return false
	}
	if resp.IsError() {
		c.logger.Warn("read rejected, returning empty default",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.String("message", errorMessage(resp.Body(), resp.Status())))
		return false
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		c.logger.Warn("read returned malformed body, returning empty default",
			zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

// do performs a fail-hard write and decodes the response into out when
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return &RequestError{Message: err.Error()}
	}
	if resp.IsError() {
		return &RequestError{
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(resp.Body(), resp.Status()),
		}
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &RequestError{
				StatusCode: resp.StatusCode(),
				Message:    fmt.Sprintf("malformed response body: %v", err),
			}
		}
	}
	return nil
}

// getChannel returns the shared push channel, dialing it on first use. If
// the connection cannot be established within the bounded retry policy a
// no-op channel is installed instead, so call sites never branch on
// availability.
func (c *Client) getChannel() Channel {
	c.channelOnce.Do(func() {
		ch, err := dialChannel(c.wsURL, c.logger)
		if err != nil {
			c.logger.Warn("push channel unavailable, updates disabled", zap.Error(err))
			c.channel = noopChannel{}
			return
		}
		c.channel = ch
	})
	return c.channel
}

// ChannelConnected reports whether the push channel currently holds a live
// connection. Tracked independently of CheckHealth.
func (c *Client) ChannelConnected() bool {
	return c.getChannel().Connected()
}

// Close tears down the push channel. Going through channelOnce means a
// Close racing the first subscription still sees the freshly dialed
// channel; on a client that never subscribed it installs the no-op
// channel, and later subscriptions stay no-ops.
func (c *Client) Close() {
	c.channelOnce.Do(func() {
		c.channel = noopChannel{}
	})
	c.channel.Close()
}

// idResponse is the backend's answer to every create/mutate call.
type idResponse struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
}
