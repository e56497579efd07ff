package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
	"github.com/princespaghetti/poe2arb/internal/policy"
)

const testURL = "https://poe.ninja/poe2/api/data/index-state"

// mockHTTPClient implements HTTPClient interface for testing
type mockHTTPClient struct {
	calls  atomic.Int64
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.calls.Add(1)
	return m.doFunc(req)
}

// respondWith returns a mock client that answers every request with status and body.
func respondWith(status int, body string) *mockHTTPClient {
	return &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: status,
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		},
	}
}

// failingClient fails the test if any request is sent.
func failingClient(t *testing.T) *mockHTTPClient {
	return &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			t.Errorf("unexpected outbound request to %s", req.URL)
			return nil, errors.New("unexpected request")
		},
	}
}

func requireKind(t *testing.T, err error, want poeerrors.Kind) *poeerrors.GatewayError {
	t.Helper()
	require.Error(t, err)
	var gwErr *poeerrors.GatewayError
	require.True(t, errors.As(err, &gwErr), "error %v is not a GatewayError", err)
	require.Equal(t, want, gwErr.Kind, "unexpected kind for %v", err)
	return gwErr
}

func TestNew(t *testing.T) {
	t.Run("with nil client", func(t *testing.T) {
		gw := New(nil)
		assert.NotNil(t, gw)
		assert.Same(t, sharedClient(), gw.client)
		assert.Equal(t, policy.Default().Hosts(), gw.Policy().Hosts())
	})

	t.Run("with custom client", func(t *testing.T) {
		customClient := &mockHTTPClient{}
		gw := New(customClient)
		assert.Equal(t, customClient, gw.client)
	})

	t.Run("with policy", func(t *testing.T) {
		p := policy.New([]string{"https"}, []string{"example.com"})
		gw := New(&mockHTTPClient{}, WithPolicy(p))
		assert.Equal(t, []string{"example.com"}, gw.Policy().Hosts())
	})
}

func TestSharedClient(t *testing.T) {
	c := sharedClient()
	assert.Same(t, c, sharedClient())
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.NotNil(t, c.CheckRedirect)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind poeerrors.Kind
	}{
		{"plain words", "not a url", poeerrors.KindInvalidURL},
		{"empty", "", poeerrors.KindInvalidURL},
		{"missing scheme", "://invalid-url", poeerrors.KindInvalidURL},
		{"relative", "poe.ninja/api", poeerrors.KindInvalidURL},
		{"bad port", "https://poe.ninja:port/x", poeerrors.KindInvalidURL},
		{"space in host", "https://poe .ninja/x", poeerrors.KindInvalidURL},
		{"control character", "https://poe.ninja/\x7f", poeerrors.KindInvalidURL},
		{"http", "http://poe.ninja/x", poeerrors.KindSchemeNotAllowed},
		{"ftp", "ftp://poe.ninja/x", poeerrors.KindSchemeNotAllowed},
		{"file", "file:///etc/passwd", poeerrors.KindSchemeNotAllowed},
		{"data", "data:text/plain,hi", poeerrors.KindSchemeNotAllowed},
		{"other host", "https://evil.example/x", poeerrors.KindHostNotAllowed},
		{"subdomain", "https://api.poe.ninja/x", poeerrors.KindHostNotAllowed},
		{"suffix", "https://poe.ninja.evil.example/x", poeerrors.KindHostNotAllowed},
		{"trailing dot", "https://poe.ninja./x", poeerrors.KindHostNotAllowed},
		{"empty host", "https:///x", poeerrors.KindHostNotAllowed},
		{"opaque", "https:poe.ninja", poeerrors.KindHostNotAllowed},
		{"loopback", "https://127.0.0.1/x", poeerrors.KindHostNotAllowed},
	}

	gw := New(failingClient(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := gw.Validate(tt.raw)
			assert.Nil(t, u)
			gwErr := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.raw, gwErr.URL)
		})
	}
}

func TestValidate_Allowed(t *testing.T) {
	gw := New(failingClient(t))
	for _, raw := range []string{
		"https://poe.ninja",
		"https://poe.ninja/poe2/api/economy/exchange/current/overview?league=Standard&type=Currency",
		"HTTPS://poe.ninja/x",
		"https://POE.NINJA/x",
		"https://poe.ninja:443/x",
	} {
		u, err := gw.Validate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "https", u.Scheme)
	}
}

func TestValidate_InvalidURLKeepsParserText(t *testing.T) {
	gw := New(failingClient(t))

	_, err := gw.Validate("not a url")
	requireKind(t, err, poeerrors.KindInvalidURL)
	assert.Equal(t, "invalid url: relative URL without a base", err.Error())

	_, err = gw.Validate("https://poe.ninja:port/")
	requireKind(t, err, poeerrors.KindInvalidURL)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestFetchJSON_Success(t *testing.T) {
	mockClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, http.MethodGet, req.Method)
			assert.Equal(t, testURL, req.URL.String())
			assert.Equal(t, "application/json", req.Header.Get("Accept"))
			assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
			assert.Nil(t, req.Body)

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"ok":true}`)),
			}, nil
		},
	}

	gw := New(mockClient)
	result, err := gw.FetchJSON(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, result)
	assert.Equal(t, int64(1), mockClient.calls.Load())
}

func TestFetchJSON_DecodesAnyJSONValue(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{"array", `[1,"two",null]`, []any{json.Number("1"), "two", nil}},
		{"string", `"hello"`, "hello"},
		{"number", `12345678901234567890`, json.Number("12345678901234567890")},
		{"bool", `false`, false},
		{"null", `null`, nil},
		{"surrounding whitespace", " \n{\"a\":{\"b\":[]}}\n ", map[string]any{"a": map[string]any{"b": []any{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := New(respondWith(http.StatusOK, tt.body))
			result, err := gw.FetchJSON(context.Background(), testURL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestFetchJSON_AcceptsAny2xx(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusNonAuthoritativeInfo, 299} {
		gw := New(respondWith(status, `{}`))
		_, err := gw.FetchJSON(context.Background(), testURL)
		assert.NoError(t, err, "status %d", status)
	}
}

func TestFetchJSON_HTTPErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantText   string
	}{
		{
			name:       "500 Internal Server Error",
			statusCode: http.StatusInternalServerError,
			body:       "server error",
			wantText:   "http error: 500 Internal Server Error server error",
		},
		{
			name:       "404 Not Found",
			statusCode: http.StatusNotFound,
			body:       "",
			wantText:   "http error: 404 Not Found",
		},
		{
			name:       "429 Too Many Requests",
			statusCode: http.StatusTooManyRequests,
			body:       `{"error":"slow down"}`,
			wantText:   `http error: 429 Too Many Requests {"error":"slow down"}`,
		},
		{
			name:       "304 Not Modified",
			statusCode: http.StatusNotModified,
			body:       "",
			wantText:   "http error: 304 Not Modified",
		},
		{
			name:       "199 informational",
			statusCode: 199,
			body:       "early",
			wantText:   "http error: 199 early",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := New(respondWith(tt.statusCode, tt.body))

			result, err := gw.FetchJSON(context.Background(), testURL)
			assert.Nil(t, result)
			gwErr := requireKind(t, err, poeerrors.KindHTTPStatus)
			assert.Equal(t, tt.statusCode, gwErr.StatusCode)
			assert.Equal(t, tt.body, gwErr.Body)
			assert.Equal(t, tt.wantText, err.Error())
		})
	}
}

func TestFetchJSON_ErrorBodyReadFailure(t *testing.T) {
	mockClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusBadGateway,
				Body:       io.NopCloser(&errorReader{err: errors.New("connection reset")}),
			}, nil
		},
	}

	gw := New(mockClient)
	_, err := gw.FetchJSON(context.Background(), testURL)
	gwErr := requireKind(t, err, poeerrors.KindHTTPStatus)
	assert.Equal(t, http.StatusBadGateway, gwErr.StatusCode)
	assert.Empty(t, gwErr.Body)
	assert.NotContains(t, err.Error(), "connection reset")
}

func TestFetchJSON_ErrorBodyIsCapped(t *testing.T) {
	large := strings.Repeat("x", maxErrorBodyBytes+1024)
	gw := New(respondWith(http.StatusServiceUnavailable, large))

	_, err := gw.FetchJSON(context.Background(), testURL)
	gwErr := requireKind(t, err, poeerrors.KindHTTPStatus)
	assert.Len(t, gwErr.Body, maxErrorBodyBytes)
}

func TestFetchJSON_InvalidJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
	}{
		{"plain text", "not json", "invalid character"},
		{"empty", "", "empty response body"},
		{"truncated", `{"ok":`, "unexpected EOF"},
		{"trailing data", `{"ok":true} extra`, "unexpected data after top-level value"},
		{"two values", `{} {}`, "unexpected data after top-level value"},
		{"html", "<html></html>", "invalid character '<'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := New(respondWith(http.StatusOK, tt.body))
			result, err := gw.FetchJSON(context.Background(), testURL)
			assert.Nil(t, result)
			requireKind(t, err, poeerrors.KindInvalidJSON)
			assert.True(t, strings.HasPrefix(err.Error(), "invalid json: "), err.Error())
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestFetchJSON_NetworkError(t *testing.T) {
	networkErr := errors.New("network connection failed")
	mockClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, networkErr
		},
	}

	gw := New(mockClient)
	result, err := gw.FetchJSON(context.Background(), testURL)
	assert.Nil(t, result)
	requireKind(t, err, poeerrors.KindTransport)
	assert.True(t, errors.Is(err, networkErr))
	assert.Equal(t, "http request failed: network connection failed", err.Error())
}

func TestFetchJSON_BodyReadError(t *testing.T) {
	mockClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(&errorReader{err: errors.New("read error")}),
			}, nil
		},
	}

	gw := New(mockClient)
	_, err := gw.FetchJSON(context.Background(), testURL)
	requireKind(t, err, poeerrors.KindTransport)
	assert.Contains(t, err.Error(), "read response")
	assert.Contains(t, err.Error(), "read error")
}

func TestFetchJSON_ContextCancellation(t *testing.T) {
	mockClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, req.Context().Err()
		},
	}

	gw := New(mockClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.FetchJSON(ctx, testURL)
	requireKind(t, err, poeerrors.KindTransport)
	assert.Contains(t, err.Error(), "context canceled")
}

func TestFetchJSON_ContextTimeout(t *testing.T) {
	mockClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Second):
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(strings.NewReader("{}")),
				}, nil
			}
		},
	}

	gw := New(mockClient)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := gw.FetchJSON(ctx, testURL)
	requireKind(t, err, poeerrors.KindTransport)
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestFetchJSON_PolicyRejectionsSendNothing(t *testing.T) {
	tests := []struct {
		raw  string
		kind poeerrors.Kind
	}{
		{"http://poe.ninja/x", poeerrors.KindSchemeNotAllowed},
		{"https://evil.example/x", poeerrors.KindHostNotAllowed},
		{"not a url", poeerrors.KindInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			mockClient := respondWith(http.StatusOK, `{"ok":true}`)
			gw := New(mockClient)

			_, err := gw.FetchJSON(context.Background(), tt.raw)
			requireKind(t, err, tt.kind)
			assert.Equal(t, int64(0), mockClient.calls.Load())
		})
	}
}

func TestFetchJSON_DisallowedSchemeProperty(t *testing.T) {
	mockClient := respondWith(http.StatusOK, `{}`)
	gw := New(mockClient)

	rapid.Check(t, func(t *rapid.T) {
		scheme := rapid.StringMatching(`[a-z][a-z0-9+.\-]{0,8}`).
			Filter(func(s string) bool { return s != "https" }).
			Draw(t, "scheme")
		path := rapid.StringMatching(`[a-z0-9/]{0,16}`).Draw(t, "path")

		_, err := gw.FetchJSON(context.Background(), scheme+"://poe.ninja/"+path)
		if poeerrors.KindOf(err) != poeerrors.KindSchemeNotAllowed {
			t.Fatalf("scheme %q: got %v, want scheme_not_allowed", scheme, err)
		}
	})
	assert.Equal(t, int64(0), mockClient.calls.Load())
}

func TestFetchJSON_DisallowedHostProperty(t *testing.T) {
	mockClient := respondWith(http.StatusOK, `{}`)
	gw := New(mockClient)

	rapid.Check(t, func(t *rapid.T) {
		host := rapid.StringMatching(`[a-z0-9][a-z0-9\-]{0,12}(\.[a-z]{2,6}){1,3}`).
			Filter(func(s string) bool { return s != "poe.ninja" }).
			Draw(t, "host")

		_, err := gw.FetchJSON(context.Background(), "https://"+host+"/x")
		if poeerrors.KindOf(err) != poeerrors.KindHostNotAllowed {
			t.Fatalf("host %q: got %v, want host_not_allowed", host, err)
		}
	})
	assert.Equal(t, int64(0), mockClient.calls.Load())
}

func TestFetchJSON_ConcurrentCallsAreIndependent(t *testing.T) {
	mockClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			body := `{"path":"` + req.URL.Path + `"}`
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		},
	}
	gw := New(mockClient)

	const n = 32
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			path := "/p" + strings.Repeat("x", i)
			v, err := gw.FetchJSON(context.Background(), "https://poe.ninja"+path)
			if err == nil && v.(map[string]any)["path"] != path {
				err = errors.New("response crossed between calls")
			}
			results <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-results)
	}
	assert.Equal(t, int64(n), mockClient.calls.Load())
}

func TestFetchJSON_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	okGW := New(respondWith(http.StatusOK, `{}`), WithMetrics(m))
	_, err := okGW.FetchJSON(context.Background(), testURL)
	require.NoError(t, err)
	_, err = okGW.FetchJSON(context.Background(), "http://poe.ninja/")
	require.Error(t, err)

	badGW := New(respondWith(http.StatusInternalServerError, "boom"), WithMetrics(m))
	_, err = badGW.FetchJSON(context.Background(), testURL)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("scheme_not_allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("http_status_error")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.FetchDuration))
}

func TestFetchJSON_LogsFailuresWithoutBody(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gw := New(respondWith(http.StatusInternalServerError, "secret-body"), WithLogger(zap.New(core)))

	_, err := gw.FetchJSON(context.Background(), testURL)
	require.Error(t, err)

	entries := logs.FilterMessage("Fetch rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "http_status_error", fields["kind"])
	assert.Equal(t, testURL, fields["url"])
	assert.Equal(t, int64(http.StatusInternalServerError), fields["status"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	for key, value := range fields {
		assert.NotContains(t, fmt.Sprint(value), "secret-body", "field %s leaks the body", key)
	}

	gw = New(respondWith(http.StatusOK, `{}`), WithLogger(zap.New(core)))
	_, err = gw.FetchJSON(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Fetch succeeded").Len())
}

func TestDecodeJSON_LargeDocument(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`{"lines":[`)
	for i := 0; i < 5000; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"id":"divine","rate":123.456}`)
	}
	buf.WriteString(`]}`)

	v, err := decodeJSON(buf.Bytes())
	require.NoError(t, err)
	lines := v.(map[string]any)["lines"].([]any)
	assert.Len(t, lines, 5000)
	assert.Equal(t, json.Number("123.456"), lines[0].(map[string]any)["rate"])
}

// errorReader is a helper type that always returns an error on Read
type errorReader struct {
	err error
}

func (r *errorReader) Read(p []byte) (n int, err error) {
	return 0, r.err
}
