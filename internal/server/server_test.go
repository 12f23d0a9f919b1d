package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/query_graph/internal/dialect"
	"github.com/atlekbai/query_graph/internal/engine"
	"github.com/atlekbai/query_graph/internal/handler"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := New(":0", handler.New(dialect.Pseudo(), nil, nil), nil)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/render", "application/json",
		strings.NewReader(`{"select": ["T.A", "T.B"], "allow_duplicates": true}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var q engine.Query
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&q))
	assert.Equal(t, "SELECT T.[A], T.[B] FROM T", q.SQL)

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	missing, err := http.Get(ts.URL + "/v1/catalog/Customer")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	wrongMethod, err := http.Get(ts.URL + "/v1/render")
	require.NoError(t, err)
	wrongMethod.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, wrongMethod.StatusCode)
}

func TestServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	s := New(addr, handler.New(dialect.Pseudo(), nil, nil), nil)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
