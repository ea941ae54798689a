package mock

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bankRoutes = `
routes:
  - name: balance
    path: /accounts/{id}/balance
    responses:
      - body: {account: "{{id}}", balance: 100.00}
      - body: {account: "{{id}}", balance: 105.00}
  - name: deposit
    method: post
    path: /accounts/{id}/deposits/
    responses:
      - status: 201
        headers:
          Location: /accounts/{{id}}/deposits/1
        body: '{"id": "{{uuid()}}", "amount": ${$.amount}, "currency": "{{query.currency}}"}'
  - name: ping
    path: /ping
    cycle: true
    responses:
      - status: 200
        format: xml
        body: "<pong>1</pong>"
      - status: 503
`

func newTestServer(t *testing.T, routes string) (*Server, *httptest.Server) {
	t.Helper()
	parsed, err := ParseRoutes(strings.NewReader(routes))
	require.NoError(t, err)

	s := NewServer(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRegistry(builtin.NewRegistry()),
	)
	for _, r := range parsed {
		require.NoError(t, s.AddRoute(r))
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_SequenceSticksToLast(t *testing.T) {
	s, ts := newTestServer(t, bankRoutes)

	_, body := get(t, ts.URL+"/accounts/42/balance")
	assert.JSONEq(t, `{"account": "42", "balance": 100}`, body)
	_, body = get(t, ts.URL+"/accounts/42/balance")
	assert.JSONEq(t, `{"account": "42", "balance": 105}`, body)
	_, body = get(t, ts.URL+"/accounts/42/balance")
	assert.JSONEq(t, `{"account": "42", "balance": 105}`, body)
	assert.Equal(t, 3, s.Routes()[0].Calls())

	resp, err := http.Post(ts.URL+ResetPath, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = get(t, ts.URL+"/accounts/42/balance")
	assert.JSONEq(t, `{"account": "42", "balance": 100}`, body)
}

func TestServer_EchoesRequest(t *testing.T) {
	_, ts := newTestServer(t, bankRoutes)

	resp, err := http.Post(ts.URL+"/accounts/7/deposits?currency=EUR", "application/json",
		strings.NewReader(`{"amount": 5.00}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/accounts/7/deposits/1", resp.Header.Get("Location"))
	assert.Contains(t, string(data), `"amount": 5.00`)
	assert.Contains(t, string(data), `"currency": "EUR"`)
	assert.NotContains(t, string(data), "uuid()")
}

func TestServer_CycleAndFormat(t *testing.T) {
	_, ts := newTestServer(t, bankRoutes)

	resp, body := get(t, ts.URL+"/ping")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.Equal(t, "<pong>1</pong>", body)

	resp, body = get(t, ts.URL+"/ping")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Empty(t, body)

	resp, _ = get(t, ts.URL+"/ping")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_NotFound(t *testing.T) {
	_, ts := newTestServer(t, bankRoutes)

	resp, _ := get(t, ts.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Delay(t *testing.T) {
	routes, err := ParseRoutes(strings.NewReader("routes:\n  - path: /slow\n"))
	require.NoError(t, err)
	s := NewServer(WithDelay(50*time.Millisecond), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, s.AddRoute(routes[0]))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	start := time.Now()
	resp, body := get(t, ts.URL+"/slow")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestParseRoutes_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			input:   "routes: [",
			wantErr: "parsing routes",
		},
		{
			name:    "bad status",
			input:   "routes:\n  - path: /a\n    responses:\n      - status: 99\n",
			wantErr: "route 1: response 1: invalid status 99",
		},
		{
			name:    "bad format",
			input:   "routes:\n  - path: /a\n    responses:\n      - format: csv\n",
			wantErr: `route 1: response 1: unknown format "csv"`,
		},
		{
			name:    "duplicate",
			input:   "routes:\n  - path: /a\n  - path: /a/\n    method: get\n",
			wantErr: "route 2: duplicate route GET /a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoutes(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServer_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bankRoutes), 0o644))

	s := NewServer()
	require.NoError(t, s.LoadFile(path))
	assert.Len(t, s.Routes(), 3)
	assert.Equal(t, http.MethodPost, s.Routes()[1].Method)
	assert.Equal(t, "/accounts/{id}/deposits", s.Routes()[1].Path)

	err := s.AddRoute(&Route{Method: "GET", Path: "/ping"})
	assert.EqualError(t, err, "duplicate route GET /ping")

	assert.Error(t, NewServer().LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
