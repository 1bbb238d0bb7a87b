// Package gateway is the resilient HTTP client used for every call to the
// transactions, analytics, and function backends. It retries transient
// failures with exponential backoff and surfaces terminal failures as
// UpstreamError; it never falls back on behalf of a caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/internal/domain"
)

// RetryPolicy is the explicit retry contract consumed by the gateway:
// how many extra attempts beyond the first, the backoff base, and the
// predicate deciding whether a failure is worth another attempt.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Retryable  func(status int, err error) bool
}

// DefaultRetryable retries transport-level failures (no response), 429,
// and 5xx. Every other 4xx is terminal.
func DefaultRetryable(status int, err error) bool {
	if err != nil && status == 0 {
		return true
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500
}

// Backoff returns the delay before the given zero-based attempt is retried.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay * (1 << attempt)
}

// Request describes one upstream call.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   any // JSON-encoded when non-nil
}

// Response is a successful (status < 400) upstream reply.
type Response struct {
	Status int
	Body   []byte
}

// JSON decodes the response body into dest.
func (r *Response) JSON(dest any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, dest)
}

type Gateway struct {
	client *http.Client
	policy RetryPolicy
	logger *logrus.Logger
}

// New builds a gateway with a fixed per-call timeout. Stateless across
// invocations; safe for concurrent use.
func New(timeout time.Duration, policy RetryPolicy, logger *logrus.Logger) *Gateway {
	if policy.Retryable == nil {
		policy.Retryable = DefaultRetryable
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 150 * time.Millisecond
	}
	return &Gateway{
		client: &http.Client{Timeout: timeout},
		policy: policy,
		logger: logger,
	}
}

// Do performs the request, retrying per the policy. A reply with status
// >= 400 is a failure carrying that status; exceeding the timeout counts
// as a network failure eligible for retry.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	var last *domain.UpstreamError
	for attempt := 0; attempt <= g.policy.MaxRetries; attempt++ {
		resp, uerr := g.once(ctx, req)
		if uerr == nil {
			return resp, nil
		}
		last = uerr
		if !g.policy.Retryable(uerr.Status, uerr.Err) {
			break
		}
		if attempt == g.policy.MaxRetries {
			break
		}
		select {
		case <-time.After(g.policy.Backoff(attempt)):
		case <-ctx.Done():
			return nil, &domain.UpstreamError{Target: req.URL, Err: ctx.Err()}
		}
	}
	if g.logger != nil {
		g.logger.WithFields(logrus.Fields{
			"target": req.URL,
			"status": last.Status,
		}).Warn("upstream_exhausted")
	}
	return nil, last
}

func (g *Gateway) once(ctx context.Context, req Request) (*Response, *domain.UpstreamError) {
	u := req.URL
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &domain.UpstreamError{Target: req.URL, Err: err}
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, &domain.UpstreamError{Target: req.URL, Err: err}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &domain.UpstreamError{Target: req.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Target: req.URL, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &domain.UpstreamError{Target: req.URL, Status: resp.StatusCode, Body: data}
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// GetJSON fetches url with query params and decodes the JSON reply.
func (g *Gateway) GetJSON(ctx context.Context, rawURL string, query url.Values, dest any) error {
	resp, err := g.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Query: query})
	if err != nil {
		return err
	}
	return resp.JSON(dest)
}

// PostJSON posts body to url with optional headers.
func (g *Gateway) PostJSON(ctx context.Context, rawURL string, body any, header http.Header) (*Response, error) {
	return g.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Body: body, Header: header})
}

// PutJSON puts body to url with optional headers.
func (g *Gateway) PutJSON(ctx context.Context, rawURL string, body any, header http.Header) (*Response, error) {
	return g.Do(ctx, Request{Method: http.MethodPut, URL: rawURL, Body: body, Header: header})
}

// Delete issues a DELETE with query params and optional headers.
func (g *Gateway) Delete(ctx context.Context, rawURL string, query url.Values, header http.Header) (*Response, error) {
	return g.Do(ctx, Request{Method: http.MethodDelete, URL: rawURL, Query: query, Header: header})
}
