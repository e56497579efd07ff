package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Command names registered by NewDefault.
const (
	CommandHTTPGetJSON = "http_get_json"
	CommandGreet       = "greet"
)

// Fetcher is the part of the gateway the bridge needs.
type Fetcher interface {
	FetchJSON(ctx context.Context, rawURL string) (any, error)
}

// FetchArgs are the arguments of http_get_json.
type FetchArgs struct {
	URL *string `json:"url"`
}

// GreetArgs are the arguments of greet.
type GreetArgs struct {
	Name *string `json:"name"`
}

// NewDefault returns a registry with the gateway and demo commands.
func NewDefault(fetcher Fetcher, logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	// Names are constant and distinct, so registration cannot fail.
	_ = r.Register(CommandHTTPGetJSON, HTTPGetJSON(fetcher))
	_ = r.Register(CommandGreet, Greet)
	return r
}

// HTTPGetJSON wraps the gateway as a command taking {"url": "..."}.
func HTTPGetJSON(fetcher Fetcher) Handler {
	return func(ctx context.Context, args json.RawMessage) (any, error) {
		var a FetchArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.URL == nil {
			return nil, fmt.Errorf("%w: missing required key url", ErrInvalidArgs)
		}
		return fetcher.FetchJSON(ctx, *a.URL)
	}
}

// Greet is the demo command taking {"name": "..."}.
func Greet(_ context.Context, args json.RawMessage) (any, error) {
	var a GreetArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Name == nil {
		return nil, fmt.Errorf("%w: missing required key name", ErrInvalidArgs)
	}
	return GreetMessage(*a.Name), nil
}

// GreetMessage formats the greeting for name.
func GreetMessage(name string) string {
	return fmt.Sprintf("Hello, %s! You've been greeted from Go!", name)
}
