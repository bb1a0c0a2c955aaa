// Package commerce is the client of the commerce backend that owns
// addresses, orders, payments and the catalog.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxBodySize = 4 << 20

// ErrUnavailable is returned while the circuit breaker rejects calls.
var ErrUnavailable = errors.New("commerce backend unavailable")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return "commerce: " + http.StatusText(e.Status) + ": " + e.Message
}

// Config configures the Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// BreakerFailures is the number of consecutive failures that opens the
	// breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open.
	BreakerCooldown time.Duration
}

// Client calls the commerce backend. Calls are never retried; the breaker
// fails fast while the backend is down.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// New creates a Client.
func New(cfg Config, opts ...otelhttp.Option) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "commerce",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
		},
		breaker: breaker,
	}, nil
}

type tokenKey struct{}

// WithToken returns a context carrying the buyer's Authorization header
// value, forwarded on every backend call made with it.
func WithToken(ctx context.Context, authorization string) context.Context {
	return context.WithValue(ctx, tokenKey{}, authorization)
}

// TokenFrom returns the Authorization value set by WithToken.
func TokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey{}).(string)
	return v
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	header http.Header
}

// do performs req and decodes a JSON answer into out when out is not nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	if err != nil {
		return err
	}
	// No Content: out keeps its zero value.
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s %s", req.method, req.path)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	u := c.base.ResolveReference(&url.URL{Path: req.path, RawQuery: req.query.Encode()})

	var body io.Reader
	if req.body != nil {
		buf, err := json.Marshal(req.body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		httpReq.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.method, req.path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
		zctx.From(ctx).Debug("Commerce call failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, apiErr
	}
	return data, nil
}
