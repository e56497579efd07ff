// Package errors provides custom error types and exit codes for poe2arb.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// OpError is a custom error type that provides context about operations.
type OpError struct {
	Op   string // Operation being performed (e.g., "write snapshot", "read index")
	Path string // File path involved
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Kind identifies the gateway stage that rejected a fetch.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidURL
	KindSchemeNotAllowed
	KindHostNotAllowed
	KindTransport
	KindHTTPStatus
	KindInvalidJSON
)

// String returns the stable name of the kind, used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindSchemeNotAllowed:
		return "scheme_not_allowed"
	case KindHostNotAllowed:
		return "host_not_allowed"
	case KindTransport:
		return "transport_error"
	case KindHTTPStatus:
		return "http_status_error"
	case KindInvalidJSON:
		return "invalid_json"
	default:
		return "unknown"
	}
}

// IsPolicy reports whether the kind is a local validation rejection,
// i.e. one that is raised before any network activity.
func (k Kind) IsPolicy() bool {
	return k == KindInvalidURL || k == KindSchemeNotAllowed || k == KindHostNotAllowed
}

// GatewayError describes a failed fetch. Error() renders the text handed to
// the untrusted caller.
type GatewayError struct {
	Kind       Kind
	URL        string // Raw URL as supplied by the caller
	StatusCode int    // Set for KindHTTPStatus
	Body       string // Best-effort response body for KindHTTPStatus
	Err        error  // Underlying parser, transport, decode or policy error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	switch e.Kind {
	case KindInvalidURL:
		return fmt.Sprintf("invalid url: %v", e.Err)
	case KindSchemeNotAllowed:
		return fmt.Sprintf("scheme not allowed: %v", e.Err)
	case KindHostNotAllowed:
		return fmt.Sprintf("host not allowed: %v", e.Err)
	case KindTransport:
		return fmt.Sprintf("http request failed: %v", e.Err)
	case KindHTTPStatus:
		status := fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
		return strings.TrimSpace(fmt.Sprintf("http error: %s %s", strings.TrimSpace(status), e.Body))
	case KindInvalidJSON:
		return fmt.Sprintf("invalid json: %v", e.Err)
	default:
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first GatewayError in err's chain,
// or KindUnknown if there is none.
func KindOf(err error) Kind {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindUnknown
}

// Predefined errors for common scenarios.
var (
	ErrNotAbsolute       = fmt.Errorf("relative URL without a base")
	ErrEmptyHost         = fmt.Errorf("empty host")
	ErrUnknownCommand    = fmt.Errorf("unknown command")
	ErrSnapshotNotFound  = fmt.Errorf("snapshot not found")
	ErrInvalidSnapshotID = fmt.Errorf("invalid snapshot name")
	ErrInvalidConfig     = fmt.Errorf("invalid configuration")
	ErrUsage             = fmt.Errorf("invalid usage")
)

// Exit codes - use these constants in CLI commands instead of hardcoding values.
const (
	ExitSuccess      = 0 // Success
	ExitGeneralError = 1 // General error (file I/O, permissions)
	ExitConfigError  = 2 // Configuration or usage error
	ExitPolicyError  = 3 // URL rejected by the allow policy
	ExitNetworkError = 4 // Transport failure or non-2xx status
	ExitDecodeError  = 5 // Response body is not JSON
)

// ExitCodeFor maps an error to the exit code the CLI should use.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrInvalidSnapshotID) || errors.Is(err, ErrUnknownCommand) {
		return ExitConfigError
	}
	switch kind := KindOf(err); {
	case kind.IsPolicy():
		return ExitPolicyError
	case kind == KindTransport || kind == KindHTTPStatus:
		return ExitNetworkError
	case kind == KindInvalidJSON:
		return ExitDecodeError
	}
	return ExitGeneralError
}
