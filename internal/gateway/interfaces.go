// Package gateway implements the policy-restricted JSON fetch gateway.
//
// A Gateway validates a caller-supplied URL against an allow policy and only
// then performs a single GET, returning the decoded JSON body or a typed
// *errors.GatewayError naming the stage that failed.
package gateway

import "net/http"

// HTTPClient is an interface for making HTTP requests.
// This interface allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
