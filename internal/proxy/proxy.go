// Package proxy implements the outbound HTTP passthrough. It forwards a
// caller-described request upstream and returns the decoded response.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/Regdarim/arni-worker/internal/resilience"
)

// Request describes the upstream call to perform.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// Response is the decoded upstream result.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

const maxResponseBody = 10 << 20 // 10MB

// Client forwards requests with retry and circuit-breaker protection.
type Client struct {
	http *http.Client
	exec *resilience.Executor[*upstreamResult]
}

type upstreamResult struct {
	status  int
	headers http.Header
	body    []byte
}

// NewClient builds a proxy client. Retries follow the default policy
// (transport errors, 429, 5xx); the breaker opens when the upstream
// keeps failing.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	breakerCfg := resilience.DefaultBreakerConfig("proxy-upstream")
	return &Client{
		http: &http.Client{Timeout: timeout},
		exec: resilience.NewExecutor[*upstreamResult](resilience.DefaultRetryConfig, &breakerCfg),
	}
}

// Do performs the upstream call described by req.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("proxy: invalid url %q", req.URL)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("proxy: unsupported scheme %q", target.Scheme)
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	result, err := c.exec.Execute(ctx, func() (*upstreamResult, error) {
		return c.roundTrip(ctx, method, target.String(), req)
	})
	if err != nil {
		return nil, fmt.Errorf("proxy: upstream request failed: %w", err)
	}

	headers := make(map[string]string, len(result.headers))
	for name := range result.headers {
		// Encoding headers are dropped: the body is already decoded.
		if name == "Content-Encoding" || name == "Content-Length" {
			continue
		}
		headers[name] = result.headers.Get(name)
	}
	return &Response{Status: result.status, Headers: headers, Body: string(result.body)}, nil
}

func (c *Client) roundTrip(ctx context.Context, method, target string, req Request) (*upstreamResult, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Surface retryable statuses as errors so the retry policy and the
	// breaker see them.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	decoded, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	return &upstreamResult{status: resp.StatusCode, headers: resp.Header, body: decoded}, nil
}

// decodeBody inflates gzip- and brotli-encoded bodies so callers always
// receive plain text.
func decodeBody(r io.Reader, encoding string) ([]byte, error) {
	limited := io.LimitReader(r, maxResponseBody)
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		gz, err := gzip.NewReader(limited)
		if err != nil {
			return nil, fmt.Errorf("decode gzip: %w", err)
		}
		defer gz.Close()
		return io.ReadAll(gz)
	case "br":
		return io.ReadAll(brotli.NewReader(limited))
	case "", "identity":
		return io.ReadAll(limited)
	default:
		// Unknown encodings pass through untouched.
		return io.ReadAll(limited)
	}
}
