// Package transport provides the HTTP implementation of the fetch
// transport capability.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/SillyFreak/typst-preprocess/internal/observability"
)

// StatusError reports a response with a non-success status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status code: %d", e.Code)
}

// Client downloads resources over HTTP. It performs exactly one request
// per fetch; retry policy is deliberately absent.
type Client struct {
	client    *http.Client
	userAgent string
	logger    observability.Logger
}

// NewClient creates an HTTP client with a pooled transport and the given
// per-request timeout.
func NewClient(timeout time.Duration, userAgent string, logger observability.Logger) *Client {
	return &Client{
		client: &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   timeout,
		},
		userAgent: userAgent,
		logger:    logger.WithFields(map[string]interface{}{"component": "http"}),
	}
}

// Fetch issues a GET request for url. Options are sent as request headers.
// The caller owns the returned body.
func (c *Client) Fetch(ctx context.Context, url string, options map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	for key, value := range options {
		req.Header.Set(key, value)
	}

	c.logger.Debug("requesting resource", "url", url)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return resp.Body, nil
}
