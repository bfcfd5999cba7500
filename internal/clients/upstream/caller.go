// Package upstream is the shared HTTP plumbing for calls to dependent services.
// Every call resolves its base URL through the locator, then passes through a
// rate limiter, a circuit breaker and a per-call timeout before the response is
// classified into the upstream error taxonomy.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"renewals/internal/locator"
	"renewals/pkg/platform/circuit"
	"renewals/pkg/requestcontext"
)

const maxResponseBytes = 32 << 20

// Request describes one call relative to the resolved base URL.
type Request struct {
	Operation string
	Method    string
	Path      string
	Body      any
}

type invalidator interface {
	Invalidate(ctx context.Context, serviceName string)
}

type Caller struct {
	service  string
	resolver locator.Resolver
	client   *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	breaker  *circuit.Breaker
	metrics  *Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Caller)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Caller) {
		if c != nil {
			cl.client = c
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Caller) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithRateLimit caps outbound calls; a non-positive limit disables limiting.
func WithRateLimit(limit float64, burst int) Option {
	return func(cl *Caller) {
		if limit <= 0 {
			cl.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Caller) { cl.breaker = b }
}

func WithMetrics(m *Metrics) Option {
	return func(cl *Caller) { cl.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Caller) {
		if l != nil {
			cl.logger = l
		}
	}
}

func NewCaller(service string, resolver locator.Resolver, opts ...Option) *Caller {
	c := &Caller{
		service:  service,
		resolver: resolver,
		client:   &http.Client{},
		timeout:  8 * time.Second,
		breaker:  circuit.New(service),
		logger:   slog.Default(),
		tracer:   otel.Tracer("renewals/upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Caller) Service() string { return c.service }

// Do performs req and decodes a JSON response body into out when out is non-nil.
func (c *Caller) Do(ctx context.Context, req Request, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, c.service+"."+req.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("peer.service", c.service),
			attribute.String("http.request.method", req.Method),
		))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(CategoryOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		c.metrics.observe(c.service, req.Operation, outcome, time.Since(start).Seconds())
		span.End()
	}()

	if c.breaker != nil && !c.breaker.Allow() {
		return NewError(CategoryOutage, c.service, req.Operation, "circuit open", nil)
	}

	baseURL, err := c.resolver.Resolve(ctx, c.service)
	if err != nil {
		return NewError(CategoryOutage, c.service, req.Operation, "resolve service", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(callCtx); err != nil {
			return NewError(CategoryRateLimited, c.service, req.Operation, "local rate limit", err)
		}
	}

	httpReq, err := c.newRequest(callCtx, baseURL, req)
	if err != nil {
		return NewError(CategoryInternal, c.service, req.Operation, "build request", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		uerr := c.transportError(req.Operation, err)
		c.recordFailure(ctx)
		if inv, ok := c.resolver.(invalidator); ok {
			inv.Invalidate(ctx, c.service)
		}
		return uerr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.recordFailure(ctx)
		return c.transportError(req.Operation, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		category := categoryForStatus(resp.StatusCode)
		uerr := NewError(category, c.service, req.Operation, snippet(body), nil)
		uerr.StatusCode = resp.StatusCode
		if uerr.Retryable {
			c.recordFailure(ctx)
		} else {
			c.recordSuccess(ctx)
		}
		return uerr
	}
	c.recordSuccess(ctx)

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewError(CategoryContractMismatch, c.service, req.Operation, "decode response", err)
	}
	return nil
}

func (c *Caller) newRequest(ctx context.Context, baseURL string, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, baseURL+req.Path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := requestcontext.RequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	return httpReq, nil
}

func (c *Caller) transportError(operation string, err error) *UpstreamError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewError(CategoryTimeout, c.service, operation, "request timed out", err)
	}
	return NewError(CategoryOutage, c.service, operation, "transport failure", err)
}

func (c *Caller) recordFailure(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "circuit breaker opened", "service", c.service)
		c.metrics.setBreakerOpen(c.service, true)
	}
}

func (c *Caller) recordSuccess(ctx context.Context) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "circuit breaker closed", "service", c.service)
		c.metrics.setBreakerOpen(c.service, false)
	}
}

func snippet(body []byte) string {
	const limit = 256
	s := string(bytes.TrimSpace(body))
	if len(s) > limit {
		return s[:limit]
	}
	if s == "" {
		return "empty response"
	}
	return s
}
