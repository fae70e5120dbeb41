// Package backend uploads recorded audio to the chat service.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const chatPath = "/chat"

type Config struct {
	BaseURL string
	Token   string        // sent as a bearer token when set
	Timeout time.Duration // zero means no client-side timeout
}

// StatusError is returned when the service answers with anything but 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

var ErrMissingResponse = errors.New(`response body has no "response" field`)

type Client struct {
	http      *resty.Client
	log       zerolog.Logger
	onMetrics func(Metrics)
}

type Option func(*Client)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics registers fn to receive trace timings after every upload
// that reached the server.
func WithMetrics(fn func(Metrics)) Option {
	return func(c *Client) { c.onMetrics = fn }
}

func New(cfg Config, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	c := &Client{http: rc, log: zerolog.Nop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

type chatRequest struct {
	AudioBase64 string `json:"audio_base64"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// SendAudio posts one base64 payload and returns the reply text. It makes
// a single attempt.
func (c *Client) SendAudio(ctx context.Context, payload string) (string, error) {
	reqID := uuid.NewString()
	resp, err := c.http.R().
		SetContext(ctx).
		EnableTrace().
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Request-ID", reqID).
		SetBody(chatRequest{AudioBase64: payload}).
		Post(chatPath)
	if err != nil {
		c.log.Warn().Err(err).Str("request_id", reqID).Msg("upload failed")
		return "", fmt.Errorf("POST %s: %w", chatPath, err)
	}

	m := metricsFrom(reqID, len(payload), resp)
	c.log.Debug().
		Str("request_id", reqID).
		Int("status", m.Status).
		Dur("total", m.Total).
		Bool("conn_reused", m.ConnReused).
		Msg("upload done")
	if c.onMetrics != nil {
		c.onMetrics(m)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode(), Body: truncate(string(resp.Body()), 200)}
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Response == nil {
		return "", ErrMissingResponse
	}
	return *out.Response, nil
}

// Ping checks that the service is reachable. Any HTTP answer counts.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	resp, err := c.http.R().SetContext(ctx).EnableTrace().Head("/")
	if err != nil {
		return 0, err
	}
	return resp.Request.TraceInfo().TotalTime, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
