// Package bridge is the command surface the UI calls into.
//
// Each command takes a JSON object of arguments and returns either a value
// or an error. Errors cross the boundary only as their rendered text.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
)

// ErrInvalidArgs is returned by handlers whose arguments do not decode.
var ErrInvalidArgs = errors.New("invalid args")

// Handler runs one command. args is the raw JSON argument object, possibly empty.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Response is the outcome of one invocation as the UI sees it.
type Response struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// MarshalJSON always writes value on success, even when it is null, and
// writes error only on failure.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(struct {
			ID    string `json:"id"`
			OK    bool   `json:"ok"`
			Value any    `json:"value"`
		}{r.ID, r.OK, r.Value})
	}
	return json.Marshal(struct {
		ID    string `json:"id"`
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{r.ID, r.OK, r.Error})
}

// Registry maps command names to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds a command. Names must be non-empty and unique.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("command %q has no handler", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Commands returns the registered command names, sorted.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Invoke runs the named command. The returned error is non-nil only when the
// command is unknown; handler failures are reported in the Response.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (Response, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", poeerrors.ErrUnknownCommand, name)
	}

	resp := Response{ID: uuid.NewString()}
	start := time.Now()
	value, err := h(ctx, args)
	elapsed := time.Since(start)

	if err != nil {
		resp.Error = err.Error()
		r.logger.Debug("Command failed",
			zap.String("id", resp.ID),
			zap.String("command", name),
			zap.Duration("elapsed", elapsed),
			zap.String("kind", poeerrors.KindOf(err).String()),
		)
		return resp, nil
	}

	resp.OK = true
	resp.Value = value
	r.logger.Debug("Command succeeded",
		zap.String("id", resp.ID),
		zap.String("command", name),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

// decodeArgs unmarshals args into dst. Empty args decode as {}.
func decodeArgs(args json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}
