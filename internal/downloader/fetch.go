package downloader

import (
	"context"
	"io"
	"net/http"
	"time"

	"imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

// Response is the part of an HTTP response the downloader looks at.
// The caller must close Body.
type Response struct {
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
}

// FetchClient performs a single blocking GET
type FetchClient interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// HTTPClient is a FetchClient over net/http with a per-request timeout
// and fixed browser-like headers
type HTTPClient struct {
	httpClient *http.Client
	headers    map[string]string
	logger     logger.Logger
}

// NewHTTPClient creates a fetch client. A nil log uses the global logger.
func NewHTTPClient(timeout time.Duration, userAgent string, log logger.Logger) *HTTPClient {
	if log == nil {
		log = logger.GetLogger()
	}
	headers := map[string]string{
		"Accept": "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		logger:     log,
	}
}

// SetTransport swaps the underlying round tripper
func (c *HTTPClient) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// Fetch issues a GET for url. Any transport failure comes back as a
// network error; non-200 statuses are returned as a normal Response.
func (c *HTTPClient) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, "invalid image URL", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.New(errors.ErrorTypeNetwork, "request failed", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}
