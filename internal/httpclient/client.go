// Package httpclient calls the internal Server API. Every outbound call carries
// the caller's correlation headers and is recorded through the log pipeline
// with masked headers and bodies.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/domain"
	"github.com/timmy/crudgate/internal/logger"
	"github.com/timmy/crudgate/internal/service"
)

// ErrNotConfigured is returned when no base URL is set.
var ErrNotConfigured = errors.New("upstream base url is not configured")

// Config holds configuration for the upstream client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

// Client wraps a resty client bound to one upstream.
type Client struct {
	client  *resty.Client
	logs    *service.LogService
	baseURL string
}

// New creates a new upstream client.
// Parameters:
//   - cfg: base URL, timeout and retry settings.
//   - logs: pipeline receiving request, response, performance and exception entries; may be nil.
//   - log: logger handed to resty for its own diagnostics.
//
// Returns:
//   - *Client: initialized client.
func New(cfg *Config, logs *service.LogService, log *logger.Logger) *Client {
	if log == nil {
		log = logger.GetDefault()
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetLogger(log.WithField(logger.FieldComponent, "upstream"))

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	client.SetRetryCount(cfg.RetryCount)
	if cfg.RetryWait > 0 {
		client.SetRetryWaitTime(cfg.RetryWait)
	}
	if cfg.RetryMaxWait > 0 {
		client.SetRetryMaxWaitTime(cfg.RetryMaxWait)
	}
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})

	c := &Client{client: client, logs: logs, baseURL: cfg.BaseURL}
	client.OnBeforeRequest(c.beforeRequest)
	client.OnAfterResponse(c.afterResponse)
	client.OnError(c.onError)
	return c
}

// Do sends one request to path on the upstream.
// Parameters:
//   - ctx: request context; its correlation context is propagated.
//   - method: HTTP method.
//   - path: path relative to the base URL.
//   - rawQuery: already encoded query string, may be empty.
//   - header: headers to forward.
//   - body: request body, may be nil.
//
// Returns:
//   - *resty.Response: the final response after retries.
//   - error: non-nil on transport failure.
func (c *Client) Do(ctx context.Context, method, path, rawQuery string, header http.Header, body []byte) (*resty.Response, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	req := c.client.R().SetContext(ctx)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if rawQuery != "" {
		req.SetQueryString(rawQuery)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return resp, fmt.Errorf("upstream %s %s: %w", method, path, err)
	}
	return resp, nil
}

// beforeRequest injects the correlation headers and records the outbound request.
func (c *Client) beforeRequest(_ *resty.Client, r *resty.Request) error {
	ctx := r.Context()
	cc := correlation.FromContext(ctx)
	correlation.InjectHeaders(r.Header, cc)

	if c.logs == nil {
		return nil
	}
	entry := &domain.RequestEntry{
		Method:  r.Method,
		URL:     c.baseURL + r.URL,
		Query:   r.QueryParam.Encode(),
		Headers: c.logs.Masker().MaskHTTPHeader(r.Header),
	}
	if b, ok := r.Body.([]byte); ok {
		entry.Body = string(b)
		entry.ContentLength = int64(len(b))
	}
	entry.Layer = "upstream"
	c.logs.Emit(ctx, entry)
	return nil
}

// afterResponse records the response and its latency.
func (c *Client) afterResponse(_ *resty.Client, resp *resty.Response) error {
	if c.logs == nil {
		return nil
	}
	ctx := resp.Request.Context()

	entry := &domain.ResponseEntry{
		StatusCode: resp.StatusCode(),
		Headers:    c.logs.Masker().MaskHTTPHeader(resp.Header()),
		Body:       string(resp.Body()),
		DurationMs: resp.Time().Milliseconds(),
	}
	entry.Layer = "upstream"
	c.logs.Emit(ctx, entry)

	perf := &domain.PerformanceEntry{
		Operation:  "upstream " + resp.Request.Method + " " + resp.Request.URL,
		DurationMs: resp.Time().Milliseconds(),
	}
	perf.Layer = "upstream"
	c.logs.Emit(ctx, perf)
	return nil
}

// onError records transport failures. Error responses are handled by afterResponse.
func (c *Client) onError(r *resty.Request, err error) {
	if c.logs == nil {
		return
	}
	var respErr *resty.ResponseError
	if errors.As(err, &respErr) {
		if respErr.Response != nil && respErr.Response.RawResponse != nil {
			return
		}
		err = respErr.Err
	}
	entry := &domain.ExceptionEntry{
		Category:  "upstream",
		ErrorType: fmt.Sprintf("%T", err),
		Message:   err.Error(),
	}
	entry.Layer = "upstream"
	c.logs.Emit(r.Context(), entry)
}
