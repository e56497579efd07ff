package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
	"github.com/princespaghetti/poe2arb/internal/policy"
)

// maxErrorBodyBytes caps how much of a non-2xx body is kept for the error.
const maxErrorBodyBytes = 64 << 10

// Gateway validates URLs against a policy and fetches JSON from the ones
// that pass. It holds no mutable state and is safe for concurrent use.
type Gateway struct {
	client  HTTPClient
	policy  policy.Policy
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithPolicy replaces the default policy.
func WithPolicy(p policy.Policy) Option {
	return func(g *Gateway) {
		g.policy = p
	}
}

// WithLogger sets the logger used for per-fetch diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records every fetch outcome in m.
func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New creates a Gateway with the given HTTP client.
// If client is nil, the process-wide client with DefaultTimeout is used.
func New(client HTTPClient, opts ...Option) *Gateway {
	if client == nil {
		client = sharedClient()
	}
	g := &Gateway{
		client: client,
		policy: policy.Default(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the policy the gateway enforces.
func (g *Gateway) Policy() policy.Policy {
	return g.policy
}

// Validate parses rawURL and checks it against the policy without touching
// the network. Checks run in order: absolute URL, scheme, host.
func (g *Gateway) Validate(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &poeerrors.GatewayError{Kind: poeerrors.KindInvalidURL, URL: rawURL, Err: err}
	}
	if u.Scheme == "" {
		return nil, &poeerrors.GatewayError{Kind: poeerrors.KindInvalidURL, URL: rawURL, Err: poeerrors.ErrNotAbsolute}
	}
	if err := g.policy.CheckScheme(u); err != nil {
		return nil, &poeerrors.GatewayError{Kind: poeerrors.KindSchemeNotAllowed, URL: rawURL, Err: err}
	}
	if err := g.policy.CheckHost(u); err != nil {
		return nil, &poeerrors.GatewayError{Kind: poeerrors.KindHostNotAllowed, URL: rawURL, Err: err}
	}
	return u, nil
}

// FetchJSON validates rawURL, performs one GET and decodes the body as JSON.
// The context can be used to cancel the request; the client's timeout
// applies regardless.
//
// On failure the returned error is always a *errors.GatewayError.
func (g *Gateway) FetchJSON(ctx context.Context, rawURL string) (any, error) {
	start := time.Now()
	value, err := g.fetchJSON(ctx, rawURL)
	elapsed := time.Since(start)

	g.metrics.observe(err, elapsed)
	if err != nil {
		fields := []zap.Field{
			zap.String("url", rawURL),
			zap.String("kind", poeerrors.KindOf(err).String()),
			zap.Duration("elapsed", elapsed),
		}
		// The rendered error may carry a remote body; log only the cause.
		var gwErr *poeerrors.GatewayError
		if errors.As(err, &gwErr) {
			if gwErr.StatusCode != 0 {
				fields = append(fields, zap.Int("status", gwErr.StatusCode))
			}
			fields = append(fields, zap.Error(gwErr.Err))
		}
		g.logger.Warn("Fetch rejected", fields...)
		return nil, err
	}
	g.logger.Debug("Fetch succeeded",
		zap.String("url", rawURL),
		zap.Duration("elapsed", elapsed),
	)
	return value, nil
}

func (g *Gateway) fetchJSON(ctx context.Context, rawURL string) (any, error) {
	u, err := g.Validate(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(withPolicy(ctx, g.policy), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &poeerrors.GatewayError{Kind: poeerrors.KindTransport, URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &poeerrors.GatewayError{Kind: poeerrors.KindTransport, URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // Ignore close error - body already consumed

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &poeerrors.GatewayError{
			Kind:       poeerrors.KindHTTPStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Body:       readErrorBody(resp.Body),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &poeerrors.GatewayError{Kind: poeerrors.KindTransport, URL: rawURL, Err: fmt.Errorf("read response: %w", err)}
	}

	value, err := decodeJSON(data)
	if err != nil {
		return nil, &poeerrors.GatewayError{Kind: poeerrors.KindInvalidJSON, URL: rawURL, Err: err}
	}
	return value, nil
}

// readErrorBody returns at most maxErrorBodyBytes of body, or "" if reading
// fails.
func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return string(data)
}

// decodeJSON decodes exactly one JSON value. Numbers are kept as json.Number
// so large integers survive unchanged.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty response body")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return value, nil
}
