package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/princespaghetti/poe2arb/internal/policy"
)

const (
	// UserAgent identifies the gateway to remote endpoints.
	UserAgent = "poe2arb/0.1 (go)"

	// DefaultTimeout bounds a whole request, from dial to the last body byte.
	DefaultTimeout = 20 * time.Second

	maxRedirects = 10
)

// sharedClient is built on first use and never reconfigured afterwards.
var sharedClient = sync.OnceValue(func() *http.Client {
	return NewHTTPClient(DefaultTimeout)
})

// NewHTTPClient returns an *http.Client with the given overall timeout whose
// redirects are held to the same policy as the original request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
	}
}

type policyKey struct{}

// withPolicy attaches p to ctx so checkRedirect can enforce it on every hop.
func withPolicy(ctx context.Context, p policy.Policy) context.Context {
	return context.WithValue(ctx, policyKey{}, p)
}

func policyFrom(ctx context.Context) policy.Policy {
	if p, ok := ctx.Value(policyKey{}).(policy.Policy); ok {
		return p
	}
	return policy.Default()
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	p := policyFrom(req.Context())
	if err := p.CheckScheme(req.URL); err != nil {
		return fmt.Errorf("redirect to %s refused: %w", req.URL.Redacted(), err)
	}
	if err := p.CheckHost(req.URL); err != nil {
		return fmt.Errorf("redirect to %s refused: %w", req.URL.Redacted(), err)
	}
	return nil
}
