// Package api is the REST/JSON client for the upstream business API.
// Every call goes through the circuit breaker; reads are retried with
// backoff, writes never are.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/bizdesk-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("api")

// Options configures a Client.
type Options struct {
	// Tokens supplies the bearer token; nil sends no Authorization header.
	Tokens port.TokenSource
	// OnUnauthorized fires on every 401 (or locally expired token).
	// The frontend contract is "redirect to login".
	OnUnauthorized func()
	// GenericMessage is used when an error response carries no text.
	GenericMessage string
	// OnError observes every mapped upstream error (metrics hook).
	OnError func(kind string)
}

// Client wraps HTTP calls to the upstream API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates an upstream API client.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, opts Options, logger *zap.Logger) *Client {
	if opts.GenericMessage == "" {
		opts.GenericMessage = "request failed"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// request describes one upstream call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        any
	raw         io.Reader
	contentType string
	idempotent  bool
}

// do executes req and decodes a 2xx body into out (when non-nil).
// GETs are retried with backoff; everything runs inside the breaker.
func (c *Client) do(ctx context.Context, req request, out any) error {
	ctx, span := tracer.Start(ctx, "api "+req.method)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.method),
		attribute.String("api.path", req.path),
	)

	attempt := func() error {
		body, err := c.roundTrip(ctx, req)
		if err != nil {
			return err
		}
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return resilience.Permanent(fmt.Errorf("decode %s %s: %w", req.method, req.path, err))
		}
		return nil
	}

	_, err := c.cb.Execute(func() (any, error) {
		if req.method == http.MethodGet {
			return nil, resilience.RetryWithBackoff(ctx, c.cfg, attempt)
		}
		return nil, attempt()
	})
	if err == nil {
		return nil
	}

	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.observe("circuit_open")
		return &domain.ErrCircuitOpen{Service: c.cb.Name()}
	}

	err = resilience.Unwrap(err)
	var (
		unauthorized *domain.ErrUnauthorized
		notFound     *domain.ErrNotFound
		conflict     *domain.ErrConflict
		apiErr       *domain.ErrAPI
	)
	switch {
	case errors.As(err, &unauthorized):
		return err
	case errors.As(err, &notFound), errors.As(err, &conflict), errors.As(err, &apiErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		c.observe("transport")
		return &domain.ErrExternalService{Service: "api", Err: err}
	}
}

// roundTrip performs a single HTTP exchange and maps non-2xx statuses.
// 4xx answers come back wrapped as permanent so they are neither retried
// nor counted against the breaker.
func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.raw != nil:
		body = req.raw
	case req.body != nil:
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		c.logger.Error("api: failed to create request",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.idempotent {
		httpReq.Header.Set("Idempotency-Key", uuid.New().String())
	}
	if err := c.authorize(ctx, httpReq); err != nil {
		return nil, resilience.Permanent(err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("api: request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("api: failed to read response body",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("api: request OK",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("status", resp.StatusCode),
		)
		return raw, nil
	}

	c.logger.Warn("api: non-2xx response",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(string(raw), 512)),
	)

	mapped := c.mapStatus(resp.StatusCode, req.path, raw)
	if resp.StatusCode >= 500 {
		return nil, mapped
	}
	return nil, resilience.Permanent(mapped)
}

// errorPayload covers the error shapes the API emits.
type errorPayload struct {
	Detail  string              `json:"detail"`
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Errors  []domain.FieldError `json:"errors"`
}

func (c *Client) mapStatus(status int, path string, raw []byte) error {
	var p errorPayload
	_ = json.Unmarshal(raw, &p)

	msg := firstNonEmpty(p.Detail, p.Error, p.Message)
	if msg == "" {
		msg = c.opts.GenericMessage
	}

	switch status {
	case http.StatusUnauthorized:
		c.observe("unauthorized")
		if c.opts.OnUnauthorized != nil {
			c.opts.OnUnauthorized()
		}
		return &domain.ErrUnauthorized{Message: msg}
	case http.StatusNotFound:
		c.observe("not_found")
		return &domain.ErrNotFound{Resource: resourceName(path), ID: lastSegment(path)}
	case http.StatusConflict:
		c.observe("conflict")
		return &domain.ErrConflict{Message: msg, Fields: p.Errors}
	default:
		c.observe("api")
		return &domain.ErrAPI{Status: status, Message: msg, Fields: p.Errors}
	}
}

// authorize sets the bearer token. A JWT whose exp has passed is refused
// locally: the server would answer 401 anyway.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.opts.Tokens == nil {
		return nil
	}
	token, err := c.opts.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("token source: %w", err)
	}
	if token == "" {
		return nil
	}
	if expired(token, c.now()) {
		c.observe("unauthorized")
		if c.opts.OnUnauthorized != nil {
			c.opts.OnUnauthorized()
		}
		return &domain.ErrUnauthorized{Message: "access token expired"}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// expired reports whether token is a JWT with an exp claim before now.
// Opaque tokens are never considered expired.
func expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(now)
}

func (c *Client) observe(kind string) {
	if c.opts.OnError != nil {
		c.opts.OnError(kind)
	}
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements port.TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func lastSegment(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// resourceName picks the collection segment out of a path such as
// /businesses/b1/clients/c9 → "clients".
func resourceName(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		switch segs[i] {
		case "clients", "bank-accounts", "items", "invoices", "transactions":
			return segs[i]
		}
	}
	return "resource"
}
