package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/sheetspec/packages/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-Token"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"amount": 5}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	req := NewRequest("post", server.URL+"/payments").
		SetHeader("X-Token", "abc").
		SetBody([]byte(`{"amount": 5}`), extract.FormatJSON)

	resp, err := NewClient().Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, extract.FormatJSON, resp.Format())

	doc, err := resp.Document()
	require.NoError(t, err)
	v, err := doc.Get("$.id")
	require.NoError(t, err)
	assert.Equal(t, "123", v.String())
}

func TestClient_SendXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = w.Write([]byte(`<Ack><Status>OK</Status></Ack>`))
	}))
	defer server.Close()

	req := NewRequest("PUT", server.URL).SetBody([]byte(`<Doc/>`), extract.FormatXML)
	resp, err := NewClient().Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, extract.FormatXML, resp.Format())

	doc, err := resp.Document()
	require.NoError(t, err)
	v, err := doc.Get("$.Ack.Status")
	require.NoError(t, err)
	assert.Equal(t, "OK", v.String())
}

func TestClient_HeaderOverridesContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.api+json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewRequest("POST", server.URL).
		SetBody([]byte(`{}`), extract.FormatJSON).
		SetHeaders(map[string]string{"Content-Type": "application/vnd.api+json"})
	_, err := NewClient().Send(context.Background(), req)
	require.NoError(t, err)
}

func TestClient_NonSuccessIsAResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error": "bad"}`))
	}))
	defer server.Close()

	req := NewRequest("GET", server.URL)
	resp, err := NewClient().Send(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.IsClientError())

	serr := StatusError(req, resp)
	assert.Equal(t, 422, serr.StatusCode)
	assert.Contains(t, serr.Error(), "unexpected status 422")
	assert.True(t, IsTransportError(serr))
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Send(context.Background(), NewRequest("GET", server.URL))

	require.Error(t, err)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 0, te.StatusCode)
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient().Send(context.Background(), NewRequest("GET", url))
	assert.True(t, IsTransportError(err))
}

func TestClient_WithDefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "request", r.Header.Get("X-Source"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(
		WithDefaultHeaders(map[string]string{"Authorization": "test-token", "X-Source": "default"}),
	)
	resp, err := client.Send(context.Background(), NewRequest("GET", server.URL).SetHeader("X-Source", "request"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithRateLimit(20, 1))
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Send(context.Background(), NewRequest("GET", server.URL))
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	client := NewClient(WithRateLimit(0.001, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Send(ctx, NewRequest("GET", "http://127.0.0.1:1"))
	assert.True(t, IsTransportError(err))
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := NewClient(WithFollowRedirects(false)).Send(context.Background(), NewRequest("GET", server.URL+"/redirect"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr string
	}{
		{"http://example.com", ""},
		{"https://example.com/path?q=1", ""},
		{"ftp://example.com", "unsupported URL scheme"},
		{"/relative/path", "unsupported URL scheme"},
		{"http://", "URL must have a host"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://api/v1/pay", JoinURL("http://api/v1/", "/pay"))
	assert.Equal(t, "http://api/pay", JoinURL("http://api", "pay"))
	assert.Equal(t, "https://other/x", JoinURL("http://api", "https://other/x"))
	assert.Equal(t, "http://api", JoinURL("http://api", ""))
	assert.Equal(t, "/pay", JoinURL("", "/pay"))
}

func TestRequest_BuildURL(t *testing.T) {
	req := NewRequest("GET", "http://api/items?page=1").SetQueryParam("size", "10")
	assert.Equal(t, "http://api/items?page=1&size=10", req.BuildURL())
}

func TestResponse_Format(t *testing.T) {
	assert.Equal(t, extract.FormatXML, (&Response{Body: []byte(" <a/>")}).Format())
	assert.Equal(t, extract.FormatJSON, (&Response{Body: []byte(`{}`)}).Format())
	assert.Equal(t, extract.FormatJSON, (&Response{
		Headers: map[string]string{"content-type": "application/problem+json"},
		Body:    []byte(`<not xml but labelled json>`),
	}).Format())
}
