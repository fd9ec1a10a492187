package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cnserrors "github.com/NVIDIA/cns-facts/pkg/errors"
)

func testServer(t *testing.T, handlers map[string]http.HandlerFunc, mutate func(*Config)) *Server {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return New(WithName("cnsfacts-test"), WithVersion("v0.0.1"), WithConfig(cfg), WithHandler(handlers))
}

func TestHealthAndReady(t *testing.T) {
	s := testServer(t, nil, nil)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)

	s.setReady(true)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodGet, w.Header().Get("Allow"))
}

func TestDefaultRoute(t *testing.T) {
	s := testServer(t, map[string]http.HandlerFunc{"/v1/facts": func(http.ResponseWriter, *http.Request) {}}, nil)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Name    string   `json:"name"`
		Version string   `json:"version"`
		Routes  []string `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cnsfacts-test", resp.Name)
	assert.Equal(t, "v0.0.1", resp.Version)
	assert.Equal(t, []string{"GET /v1/facts", "GET /health", "GET /ready", "GET /metrics"}, resp.Routes)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	h := testServer(t, map[string]http.HandlerFunc{
		"/v1/ping": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) },
	}, nil).Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ping", nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cnsfacts_http_requests_total")
}

func TestMiddleware_RequestIDAndVersion(t *testing.T) {
	var seenID, seenVersion string
	h := testServer(t, map[string]http.HandlerFunc{
		"/v1/echo": func(w http.ResponseWriter, r *http.Request) {
			seenID = RequestID(r.Context())
			seenVersion = APIVersion(r.Context())
		},
	}, nil).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/echo", nil))
	assert.NotEmpty(t, seenID)
	assert.Equal(t, seenID, w.Header().Get(HeaderRequestID))
	assert.Equal(t, DefaultAPIVersion, seenVersion)
	assert.Equal(t, DefaultAPIVersion, w.Header().Get(HeaderAPIVersion))

	id := "3f2b8a4c-6d1e-4f7a-9b0c-2e5d8f1a7c3b"
	req := httptest.NewRequest(http.MethodGet, "/v1/echo", nil)
	req.Header.Set(HeaderRequestID, id)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, id, seenID)

	req = httptest.NewRequest(http.MethodGet, "/v1/echo", nil)
	req.Header.Set(HeaderRequestID, "not-a-uuid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not-a-uuid", seenID)
}

func TestMiddleware_RateLimit(t *testing.T) {
	h := testServer(t, map[string]http.HandlerFunc{
		"/v1/echo": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
	}, func(c *Config) {
		c.RateLimit = 0.001
		c.RateLimitBurst = 1
	}).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/echo", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(cnserrors.ErrCodeRateLimitExceeded), resp.Code)
	assert.True(t, resp.Retryable)
	assert.NotEmpty(t, resp.RequestID)
}

func TestMiddleware_Recovery(t *testing.T) {
	h := testServer(t, map[string]http.HandlerFunc{
		"/v1/panic": func(http.ResponseWriter, *http.Request) { panic("boom") },
	}, nil).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(cnserrors.ErrCodeInternal), resp.Code)
}

func TestServe_Lifecycle(t *testing.T) {
	s := testServer(t, nil, func(c *Config) { c.ShutdownTimeout = time.Second })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK && s.Ready()
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.False(t, s.Ready())
}

func TestConfig_PortFromEnv(t *testing.T) {
	t.Setenv("PORT", "9191")
	cfg := DefaultConfig()
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, ":9191", cfg.Addr())

	t.Setenv("PORT", "bogus")
	assert.Equal(t, 8080, DefaultConfig().Port)
}
