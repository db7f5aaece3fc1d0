// pkg/jcapi/client.go - HTTP client for the JumpCloud v1 and v2 REST APIs.

package jcapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	retry "github.com/codeGROOVE-dev/retry-go"

	"github.com/macadmins/jcimporter/pkg/config"
	"github.com/macadmins/jcimporter/pkg/logging"
)

const (
	contentType = "application/json"

	maxAttempts  = 3
	retryDelay   = 1 * time.Second
	retryMaxWait = 10 * time.Second
)

// APIError is returned for any non-2xx response from the JumpCloud API.
type APIError struct {
	StatusCode int
	Method     string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jumpcloud api: %s %s returned %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// retryable reports whether the request is worth reissuing. Client errors
// (auth, bad request, not found) never resolve on retry.
func (e *APIError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to the JumpCloud console API. All remote reads and mutations
// in the importer go through it.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// New builds a Client from configuration. The per-call timeout doubles as
// the network-level timeout required for every remote operation.
func New(cfg *config.Configuration) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    cfg.APIURL,
	}
}

// pageQuery returns limit/skip pagination parameters.
func pageQuery(limit, skip int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("skip", strconv.Itoa(skip))
	return q
}

// get issues a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// do issues a request with retries. Responses are decoded into out when it
// is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body for %s: %w", path, err)
		}
	}

	return retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("building request for %s: %w", path, err)
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("calling %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &APIError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Endpoint:   path,
				Body:       string(bytes.TrimSpace(snippet)),
			}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decoding response from %s: %w", path, err)
			}
		}
		return nil
	},
		retry.Attempts(maxAttempts),
		retry.Delay(retryDelay),
		retry.MaxDelay(retryMaxWait),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.retryable()
			}
			// Network-level failures are retried; encoding/decoding
			// failures are not.
			return errors.Is(err, context.DeadlineExceeded) || isTransportError(err)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			logging.Warn("Retrying JumpCloud API call",
				"attempt", attempt+1,
				"max_attempts", maxAttempts,
				"endpoint", path,
				"error", err.Error())
		}),
	)
}

// isTransportError reports whether err came from the HTTP transport rather
// than from request construction or response handling.
func isTransportError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
