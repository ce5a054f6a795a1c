package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/monagent/chainpilot/internal/envelope"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoUserID is returned when /start answers without any id field.
var ErrNoUserID = errors.New("agent did not return a user id")

// StatusError is a non-2xx answer from the agent.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent %s returned HTTP %d", e.Endpoint, e.Code)
}

// Backend is the remote agent as the chat session uses it.
type Backend interface {
	Start(ctx context.Context) (string, error)
	Query(ctx context.Context, userID, input string) (envelope.Envelope, error)
}

// RequestObserver receives the duration and status of every agent call.
type RequestObserver interface {
	ObserveAgentRequest(endpoint, status string, d time.Duration)
}

// Client talks to the agent's HTTP API.
type Client struct {
	http     *fasthttp.Client
	baseURL  string
	timeout  time.Duration
	logger   *zap.Logger
	observer RequestObserver
}

// NewClient creates a client for baseURL. A zero timeout means requests are
// bounded only by the caller's context deadline.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &fasthttp.Client{Name: "chainpilot"},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("agent"),
	}
}

// SetObserver attaches a request observer.
func (c *Client) SetObserver(o RequestObserver) {
	c.observer = o
}

// BaseURL returns the agent base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type startResponse struct {
	UserID  string `json:"user_id"`
	UserID2 string `json:"userId"`
	ID      string `json:"id"`
}

// Start asks the agent for a new user id.
func (c *Client) Start(ctx context.Context) (string, error) {
	body, err := c.do(ctx, "start", fasthttp.MethodPost, "/start", nil)
	if err != nil {
		return "", err
	}
	var resp startResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode start response: %w", err)
	}
	for _, id := range []string{resp.UserID, resp.UserID2, resp.ID} {
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
	}
	return "", ErrNoUserID
}

type queryRequest struct {
	UserID string `json:"user_id"`
	Input  string `json:"input"`
}

type queryResponse struct {
	Output     jsoniter.RawMessage `json:"output"`
	Response   jsoniter.RawMessage `json:"response"`
	Message    jsoniter.RawMessage `json:"message"`
	ActionType string              `json:"action_type"`
}

// Query sends input unmodified and returns the agent's envelope.
func (c *Client) Query(ctx context.Context, userID, input string) (envelope.Envelope, error) {
	payload, err := json.Marshal(queryRequest{UserID: userID, Input: input})
	if err != nil {
		return envelope.Envelope{}, err
	}
	body, err := c.do(ctx, "query", fasthttp.MethodPost, "/query", payload)
	if err != nil {
		return envelope.Envelope{}, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return envelope.Envelope{}, fmt.Errorf("%w: %v", envelope.ErrInvalidResponse, err)
	}
	for _, raw := range []jsoniter.RawMessage{resp.Output, resp.Response, resp.Message} {
		if out, ok := outputText(raw); ok {
			return envelope.Envelope{Output: out, ActionType: envelope.ActionType(resp.ActionType)}, nil
		}
	}
	return envelope.Envelope{}, fmt.Errorf("%w: no output field", envelope.ErrInvalidResponse)
}

// outputText returns a string field as-is and any other JSON value as its raw text.
func outputText(raw jsoniter.RawMessage) (string, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	}
	return trimmed, true
}

// Health pings the agent base URL. Any answer below 500 counts as awake.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, "health", fasthttp.MethodGet, "/", nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code < fasthttp.StatusInternalServerError {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, payload []byte) ([]byte, error) {
	requestURL := c.baseURL + path

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if payload != nil {
		req.SetBody(payload)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	start := time.Now()
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else if c.timeout > 0 {
		err = c.http.DoTimeout(req, resp, c.timeout)
	} else {
		err = c.http.Do(req, resp)
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		c.observe(endpoint, "error", start)
		c.logger.Warn("agent request failed", zap.String("url", requestURL), zap.Error(err))
		return nil, fmt.Errorf("agent %s: %w", endpoint, err)
	}

	code := resp.StatusCode()
	c.observe(endpoint, fmt.Sprintf("%d", code), start)
	body := append([]byte(nil), resp.Body()...)
	if code < 200 || code >= 300 {
		c.logger.Warn("agent returned error status",
			zap.String("url", requestURL),
			zap.Int("status", code),
			zap.ByteString("body", truncate(body, 512)))
		return nil, &StatusError{Endpoint: endpoint, Code: code, Body: string(body)}
	}

	c.logger.Debug("agent response", zap.String("endpoint", endpoint), zap.Int("bytes", len(body)))
	return body, nil
}

func (c *Client) observe(endpoint, status string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveAgentRequest(endpoint, status, time.Since(start))
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
