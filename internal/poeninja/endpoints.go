// Package poeninja builds the poe.ninja API URLs used by the arbitrage UI.
// The URLs are plain strings; they are fetched through the gateway like any
// other caller-supplied URL.
package poeninja

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	// BaseURL is the root of the poe.ninja Path of Exile 2 API.
	BaseURL = "https://poe.ninja/poe2/api"

	IndexStatePath       = "/data/index-state"
	ExchangeSearchPath   = "/economy/exchange/current/search"
	ExchangeOverviewPath = "/economy/exchange/current/overview"
	ExchangeDetailsPath  = "/economy/exchange/current/details"

	// CurrencyType is the exchange category the scanner works with.
	CurrencyType = "Currency"
)

// Endpoint names accepted by URLFor.
const (
	EndpointIndexState = "index-state"
	EndpointSearch     = "search"
	EndpointOverview   = "overview"
	EndpointDetails    = "details"
)

// Params holds the query inputs an endpoint may need.
type Params struct {
	League    string
	DetailsID string
}

// IndexStateURL returns the URL listing the current economy leagues.
func IndexStateURL() string {
	return BaseURL + IndexStatePath
}

// ExchangeSearchURL returns the exchange search URL for league.
func ExchangeSearchURL(league string) string {
	return BaseURL + ExchangeSearchPath + "?league=" + escape(league)
}

// CurrencyOverviewURL returns the currency overview URL for league.
func CurrencyOverviewURL(league string) string {
	return BaseURL + ExchangeOverviewPath + "?league=" + escape(league) + "&type=" + CurrencyType
}

// CurrencyDetailsURL returns the per-item currency details URL.
func CurrencyDetailsURL(league, detailsID string) string {
	return BaseURL + ExchangeDetailsPath +
		"?league=" + escape(league) +
		"&type=" + CurrencyType +
		"&id=" + escape(detailsID)
}

// Endpoints returns the sorted endpoint names URLFor understands.
func Endpoints() []string {
	names := []string{EndpointIndexState, EndpointSearch, EndpointOverview, EndpointDetails}
	sort.Strings(names)
	return names
}

// URLFor returns the URL of the named endpoint, checking that the params it
// needs are present.
func URLFor(endpoint string, p Params) (string, error) {
	switch endpoint {
	case EndpointIndexState:
		return IndexStateURL(), nil
	case EndpointSearch:
		if p.League == "" {
			return "", fmt.Errorf("endpoint %q requires a league", endpoint)
		}
		return ExchangeSearchURL(p.League), nil
	case EndpointOverview:
		if p.League == "" {
			return "", fmt.Errorf("endpoint %q requires a league", endpoint)
		}
		return CurrencyOverviewURL(p.League), nil
	case EndpointDetails:
		if p.League == "" || p.DetailsID == "" {
			return "", fmt.Errorf("endpoint %q requires a league and a details id", endpoint)
		}
		return CurrencyDetailsURL(p.League, p.DetailsID), nil
	default:
		return "", fmt.Errorf("unknown endpoint %q (known: %s)", endpoint, strings.Join(Endpoints(), ", "))
	}
}

// componentUnescaper undoes the QueryEscape encodings that
// encodeURIComponent does not apply.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escape percent-encodes s for a query value the way a browser's
// encodeURIComponent does, so "Rise of the Abyssal" becomes
// "Rise%20of%20the%20Abyssal" and "!'()*" stay literal.
func escape(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
