// Package client provides the HTTP plumbing and credential brokering shared by
// the vendor API clients.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/constants"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// maxErrorBody bounds how much of a failed response body is read into an error.
const maxErrorBody = 512

// Observer receives one sample per upstream call.
type Observer interface {
	ObserveUpstream(system, operation, outcome string, duration time.Duration)
}

// BaseClient provides core HTTP client functionality for calling a vendor API.
// It handles request construction, timeouts, error classification and logging.
type BaseClient struct {
	httpClient *http.Client
	system     string
	baseURL    string
	logger     *logrus.Logger
	observer   Observer
}

// NewBaseClient creates a new BaseClient for one upstream system.
//
// Parameters:
//   - system: source system tag used in logs and metrics (e.g., "3DPOS")
//   - baseURL: base URL every operation is appended to
//   - timeout: bound on each request, including reading the body
//   - logger: structured logger for HTTP operations
//   - observer: optional metrics sink (may be nil)
func NewBaseClient(
	system string,
	baseURL string,
	timeout time.Duration,
	logger *logrus.Logger,
	observer Observer,
) *BaseClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &BaseClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		system:   system,
		baseURL:  baseURL,
		logger:   logger,
		observer: observer,
	}
}

// PostForm sends a form-encoded POST to baseURL+operation.
// Caller is responsible for closing the response body.
func (c *BaseClient) PostForm(ctx context.Context, operation string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+operation,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeFormURLEncoded)

	return c.do(req, operation)
}

// Get sends a GET to baseURL+operation with the given query.
// Caller is responsible for closing the response body.
func (c *BaseClient) Get(ctx context.Context, operation string, query url.Values) (*http.Response, error) {
	target := c.baseURL + operation
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	return c.do(req, operation)
}

func (c *BaseClient) do(req *http.Request, operation string) (*http.Response, error) {
	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)

	fields := logrus.Fields{
		"system":    c.system,
		"operation": operation,
		"method":    req.Method,
	}
	c.logger.WithFields(fields).Debug("Sending upstream request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(operation, outcomeFor(err, 0), start)
		c.logger.WithFields(fields).WithError(err).Error("Upstream request failed")
		if models.IsTimeout(err) {
			return nil, fmt.Errorf("%s %s: %w", c.system, operation,
				models.NewUpstreamTimeout(c.system+" "+operation+" timed out"))
		}
		return nil, fmt.Errorf("%s %s: %w", c.system, operation,
			models.NewUpstreamError(c.system+" is unreachable"))
	}

	c.observe(operation, outcomeFor(nil, resp.StatusCode), start)
	fields["status"] = resp.StatusCode
	c.logger.WithFields(fields).Debug("Received upstream response")

	return resp, nil
}

func (c *BaseClient) observe(operation, outcome string, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstream(c.system, operation, outcome, time.Since(start))
}

func outcomeFor(err error, status int) string {
	switch {
	case err != nil && models.IsTimeout(err):
		return "timeout"
	case err != nil:
		return "error"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth"
	case status >= http.StatusBadRequest:
		return "error"
	default:
		return "ok"
	}
}

// System returns the source system tag.
func (c *BaseClient) System() string {
	return c.system
}

// BaseURL returns the configured base URL for this client.
func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

// DecodeJSON decodes a response body into v and closes it. Timeouts while
// reading become UpstreamTimeout; anything else that is not valid JSON becomes
// UpstreamError.
func DecodeJSON(resp *http.Response, system string, v any) error {
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if models.IsTimeout(err) {
			return models.NewUpstreamTimeout(system + " response timed out")
		}
		return models.NewUpstreamError(fmt.Sprintf("%s returned a malformed payload: %v", system, err))
	}
	return nil
}

// StatusError maps a non-2xx response to the error taxonomy and closes the body.
// 401 and 403 become AuthenticationError; everything else UpstreamError.
func StatusError(resp *http.Response, system string) error {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(body))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return models.NewAuthenticationError(fmt.Sprintf("%s rejected the credential (HTTP %d)", system, resp.StatusCode))
	}

	msg := fmt.Sprintf("%s returned HTTP %d", system, resp.StatusCode)
	if detail != "" {
		msg += ": " + detail
	}
	return models.NewUpstreamError(msg)
}
