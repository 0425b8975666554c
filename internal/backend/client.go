package backend

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ashendes/kitchen-pos/internal/patterns"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const (
	serviceName         = "kitchen-service"
	circuitName         = "Backoffice"
	defaultBulkheadSize = 10
)

// StatusError is a non-2xx answer from the back office
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: back office returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: back office returned status %d", e.Method, e.Path, e.StatusCode)
}

// apiError is the error body the back office answers with
type apiError struct {
	Message string `json:"message"`
}

// Options configures a Client
type Options struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	BulkheadSize int
	Breaker      patterns.BreakerSettings
	Logger       log.FieldLogger
}

// Client is a thin REST client for the back-office API. Every call runs
// through a bulkhead and a circuit breaker; there are no retries.
type Client struct {
	http     *resty.Client
	circuit  *patterns.CircuitBreakerWrapper
	bulkhead *patterns.Bulkhead
	logger   log.FieldLogger

	mu    sync.RWMutex
	token string
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = patterns.DefaultTimeout
	}
	if opts.BulkheadSize <= 0 {
		opts.BulkheadSize = defaultBulkheadSize
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}

	c := &Client{
		circuit:  patterns.NewCircuitBreakerWithSettings(circuitName, serviceName, opts.Breaker),
		bulkhead: patterns.NewBulkhead(opts.BulkheadSize, "backoffice", serviceName),
		logger:   opts.Logger,
		token:    opts.Token,
	}

	c.http = resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(0). // No automatic retries, failures feed the circuit breaker
		SetHeader("Content-Type", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if token := c.Token(); token != "" {
				r.SetHeader("Authorization", "Bearer "+token)
			}
			return nil
		}).
		OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			if r.StatusCode() == http.StatusUnauthorized {
				c.ClearToken()
				c.logger.WithField("path", r.Request.URL).Warn("Back office rejected credentials, token cleared")
			}
			return nil
		})

	return c
}

// SetToken replaces the bearer token sent with every request
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) ClearToken() {
	c.SetToken("")
}

// Circuit exposes the breaker guarding the back office
func (c *Client) Circuit() *patterns.CircuitBreakerWrapper {
	return c.circuit
}

func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do sends one request. Transport errors and 5xx answers count against the
// circuit; 4xx answers are returned as *StatusError without tripping it.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var resp *resty.Response

	err := c.bulkhead.Execute(ctx, func() error {
		_, cbErr := c.circuit.Execute(func() (interface{}, error) {
			req := c.http.R().
				SetContext(ctx).
				SetError(&apiError{})
			if body != nil {
				req.SetBody(body)
			}
			if out != nil {
				req.SetResult(out)
			}

			r, httpErr := req.Execute(method, path)
			if httpErr != nil {
				return nil, fmt.Errorf("HTTP error: %w", httpErr)
			}
			resp = r
			if r.StatusCode() >= http.StatusInternalServerError {
				return nil, statusError(method, path, r)
			}
			return r, nil
		})
		return patterns.FormatError(circuitName, cbErr)
	})
	if err != nil {
		return err
	}

	if resp.IsError() {
		return statusError(method, path, resp)
	}
	return nil
}

func statusError(method, path string, r *resty.Response) *StatusError {
	e := &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: r.StatusCode(),
	}
	if body, ok := r.Error().(*apiError); ok && body != nil {
		e.Message = body.Message
	}
	if e.Message == "" {
		e.Message = r.String()
	}
	return e
}
