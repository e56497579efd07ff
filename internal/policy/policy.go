// Package policy defines the allowlist that decides which outbound
// destinations the gateway may reach.
package policy

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
)

const (
	// DefaultScheme is the only scheme the default policy accepts.
	DefaultScheme = "https"

	// DefaultHost is the only host the default policy accepts.
	DefaultHost = "poe.ninja"
)

// Policy is an immutable set of allowed schemes and hosts.
// The zero value allows nothing.
type Policy struct {
	schemes []string
	hosts   []string
}

// New builds a policy from the given schemes and hosts. Entries are
// lowercased, trimmed, de-duplicated and sorted; empty entries are dropped.
// The slices are copied, so later changes by the caller have no effect.
func New(schemes, hosts []string) Policy {
	return Policy{
		schemes: normalize(schemes),
		hosts:   normalize(hosts),
	}
}

// Default returns the compiled-in policy: https to poe.ninja only.
func Default() Policy {
	return New([]string{DefaultScheme}, []string{DefaultHost})
}

// Schemes returns a copy of the allowed schemes.
func (p Policy) Schemes() []string {
	return slices.Clone(p.schemes)
}

// Hosts returns a copy of the allowed hosts.
func (p Policy) Hosts() []string {
	return slices.Clone(p.hosts)
}

// AllowsScheme reports whether scheme is allowed. The comparison is exact;
// url.Parse already lowercases schemes.
func (p Policy) AllowsScheme(scheme string) bool {
	_, found := slices.BinarySearch(p.schemes, scheme)
	return found
}

// AllowsHost reports whether host is allowed. Hosts are compared after ASCII
// lowercasing only: no trailing-dot stripping, no punycode conversion, no
// subdomain or wildcard matching. An empty host is never allowed.
func (p Policy) AllowsHost(host string) bool {
	if host == "" {
		return false
	}
	_, found := slices.BinarySearch(p.hosts, strings.ToLower(host))
	return found
}

// CheckScheme returns an error describing the allowed schemes if u's scheme
// is not one of them.
func (p Policy) CheckScheme(u *url.URL) error {
	if p.AllowsScheme(u.Scheme) {
		return nil
	}
	if len(p.schemes) == 0 {
		return fmt.Errorf("no schemes are allowed")
	}
	return fmt.Errorf("only %s urls are allowed", joinOr(p.schemes))
}

// CheckHost returns an error describing the allowed hosts if u's host (port
// excluded) is not one of them.
func (p Policy) CheckHost(u *url.URL) error {
	host := u.Hostname()
	if p.AllowsHost(host) {
		return nil
	}
	msg := "no hosts are allowed"
	if len(p.hosts) > 0 {
		msg = fmt.Sprintf("only %s %s allowed", joinOr(p.hosts), pluralVerb(len(p.hosts)))
	}
	if host == "" {
		return fmt.Errorf("%w: %s", poeerrors.ErrEmptyHost, msg)
	}
	return errors.New(msg)
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func joinOr(values []string) string {
	return strings.Join(values, " or ")
}

func pluralVerb(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}
