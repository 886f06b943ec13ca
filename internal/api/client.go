// Package api is the HTTP client for the web application that owns projects,
// files, annotations and catalogs. Backend adapts it to storage.Backend.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/pkg/core"
)

const breakerName = "trackmark-api"

// Client handles communication with the web application.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
	log        *slog.Logger
}

// New creates a new API client.
func New(cfg config.APIConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// only transport failures count against the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, core.ErrTransport)
		},
	})
	return c
}

// BreakerState reports the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}

// Healthcheck checks if the web application is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	_, err := c.do(ctx, "healthcheck", http.MethodGet, "/healthcheck", nil, "")
	return err
}

// errorBody is the error payload returned by the web application.
type errorBody struct {
	Error    string `json:"error"`
	Field    string `json:"field"`
	Value    string `json:"value"`
	Children []uint `json:"children"`
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(op string, status int, body []byte, id uint) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	reason := eb.Error
	if reason == "" {
		reason = http.StatusText(status)
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		field := eb.Field
		if field == "" {
			field = "request"
		}
		return &core.ValidationError{Field: field, Value: eb.Value, Reason: reason}
	case http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, reason, core.ErrNotFound)
	case http.StatusConflict:
		return &core.ConflictError{ID: id, Children: eb.Children}
	default:
		return &core.TransportError{Op: op, Err: fmt.Errorf("status %d: %s", status, reason)}
	}
}

// do sends one request through the circuit breaker and returns the response body.
// id names the entity for conflict errors.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte, contentType string, id ...uint) ([]byte, error) {
	var entity uint
	if len(id) > 0 {
		entity = id[0]
	}

	out, err := c.cb.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, &core.TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &core.TransportError{Op: op, Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &core.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, statusError(op, resp.StatusCode, data, entity)
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Warn("Request rejected by circuit breaker", "op", op, "error", err)
		return nil, &core.TransportError{Op: op, Err: err}
	}
	return out, err
}

// getJSON decodes the body of a GET request into out.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	data, err := c.do(ctx, op, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &core.TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// sendJSON encodes in as the request body and decodes the response into out when non-nil.
func (c *Client) sendJSON(ctx context.Context, op, method, path string, in, out any, id uint) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: failed to encode request: %w", op, err)
	}
	data, err := c.do(ctx, op, method, path, body, "application/json", id)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &core.TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
