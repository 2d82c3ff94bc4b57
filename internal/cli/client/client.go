// Package client provides the HTTP client for the iflab-alerts API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/alerts"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// Client is the iflab-alerts API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Request options
type RequestOptions struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// APIError represents an error response from the API
type APIError struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	ErrorType  string `json:"error_type,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("%s: %s", e.ErrorType, e.Message)
	}
	return e.Message
}

// Do performs an HTTP request to the API.
func (c *Client) Do(ctx context.Context, opts RequestOptions) (*http.Response, error) {
	reqURL, err := url.Parse(c.baseURL + opts.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if opts.Query != nil {
		reqURL.RawQuery = opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "iflab-alerts-cli/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// DoJSON performs a request and decodes the data field of the response
// envelope into result.
func (c *Client) DoJSON(ctx context.Context, opts RequestOptions, result any) error {
	resp, err := c.Do(ctx, opts)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Message == "" {
			return &APIError{
				Status:     "error",
				Message:    string(respBody),
				StatusCode: resp.StatusCode,
			}
		}
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	if result == nil {
		return nil
	}
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// --- API Methods ---

// Meta is the server metadata.
type Meta struct {
	Version      string `json:"version"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

func (c *Client) Meta(ctx context.Context) (*Meta, error) {
	var meta Meta
	if err := c.DoJSON(ctx, RequestOptions{Method: http.MethodGet, Path: "/api/v1/meta"}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) GetAlert(ctx context.Context, id models.AlertID) (*models.Alert, error) {
	var alert models.Alert
	err := c.DoJSON(ctx, RequestOptions{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/api/v1/alerts/%d", id),
	}, &alert)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// AcknowledgeAlert marks an alert acknowledged on the server.
func (c *Client) AcknowledgeAlert(ctx context.Context, id models.AlertID) (*models.Alert, error) {
	var alert models.Alert
	err := c.DoJSON(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/v1/alerts/%d/acknowledge", id),
	}, &alert)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (c *Client) EvaluateComputer(ctx context.Context, id models.ComputerID) (alerts.ComputerResult, error) {
	var result alerts.ComputerResult
	err := c.DoJSON(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/v1/computers/%d/evaluate", id),
	}, &result)
	return result, err
}

func (c *Client) EvaluateAllComputers(ctx context.Context) (alerts.PassSummary, error) {
	var summary alerts.PassSummary
	err := c.DoJSON(ctx, RequestOptions{Method: http.MethodPost, Path: "/api/v1/evaluate"}, &summary)
	return summary, err
}

func (c *Client) CheckStatus(ctx context.Context) (alerts.StatusSummary, error) {
	var summary alerts.StatusSummary
	err := c.DoJSON(ctx, RequestOptions{Method: http.MethodPost, Path: "/api/v1/status/check"}, &summary)
	return summary, err
}
