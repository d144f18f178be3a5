package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultUserAgentApplied(t *testing.T) {
	var gotUserAgent, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	resp, err := client.Get(context.Background(), server.URL, map[string]string{"X-Custom": "yes"})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "buildable-connections/1.0", gotUserAgent)
	assert.Equal(t, "yes", gotCustom)
}

func TestRequestTimeoutEnforced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	cfg := DefaultHTTPConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	client, err := NewHTTPClient(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
}

func TestMissingCABundleFails(t *testing.T) {
	cfg := DefaultHTTPConfig()
	cfg.CABundlePath = "/nonexistent/ca.pem"

	_, err := NewHTTPClient(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CA bundle")
}
