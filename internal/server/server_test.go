package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/chainpilot/internal/envelope"
	"github.com/monagent/chainpilot/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBackend struct {
	mu       sync.Mutex
	startErr error
	queryErr error
	starts   int
	queries  [][2]string
}

func (b *fakeBackend) Start(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
	if b.startErr != nil {
		return "", b.startErr
	}
	return "fresh-user", nil
}

func (b *fakeBackend) Query(_ context.Context, userID, input string) (envelope.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = append(b.queries, [2]string{userID, input})
	if b.queryErr != nil {
		return envelope.Envelope{}, b.queryErr
	}
	return envelope.Envelope{Output: `{"action_type":"chat","message":"gm"}`}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := New(&fakeBackend{}, nil, nil, nil)
	w := do(t, s.Handler(), http.MethodGet, "/api/start", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode(t, w))
}

func TestChat_Passthrough(t *testing.T) {
	b := &fakeBackend{}
	s := New(b, nil, nil, nil)

	w := do(t, s.Handler(), http.MethodPost, "/api/start", `{"input":"  send 1 mon  ","user_id":"u-7"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{
		"output":  `{"action_type":"chat","message":"gm"}`,
		"user_id": "u-7",
	}, decode(t, w))
	assert.Equal(t, [][2]string{{"u-7", "  send 1 mon  "}}, b.queries)
	assert.Zero(t, b.starts)
}

func TestChat_BootstrapsUser(t *testing.T) {
	b := &fakeBackend{}
	s := New(b, nil, nil, nil)
	w := do(t, s.Handler(), http.MethodPost, "/api/start", `{"input":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fresh-user", decode(t, w)["user_id"])
	assert.Equal(t, 1, b.starts)

	b = &fakeBackend{startErr: errors.New("agent asleep")}
	s = New(b, nil, nil, nil)
	w = do(t, s.Handler(), http.MethodPost, "/api/start", `{"input":"hi","chat_history":[{"role":"human","content":"x"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultUserID, decode(t, w)["user_id"])
	assert.Equal(t, DefaultUserID, b.queries[0][0])
}

func TestChat_QueryFailure(t *testing.T) {
	s := New(&fakeBackend{queryErr: errors.New("HTTP 502")}, nil, nil, nil)
	w := do(t, s.Handler(), http.MethodPost, "/api/start", `{"input":"hi","user_id":"u"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Error calling agent: HTTP 502", decode(t, w)["output"])
}

func TestChat_BadRequest(t *testing.T) {
	b := &fakeBackend{}
	s := New(b, nil, nil, nil)
	for _, body := range []string{`{}`, `{"input":""}`, `{"input":42}`, `not json`} {
		w := do(t, s.Handler(), http.MethodPost, "/api/start", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Missing 'input'", decode(t, w)["error"], body)
	}
	assert.Empty(t, b.queries)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	s := New(&fakeBackend{}, m, reg, nil)

	do(t, s.Handler(), http.MethodGet, "/api/start", "")
	w := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{handler="/api/start",method="GET",status="2xx"} 1`)

	// Without a gatherer the route is not mounted.
	w = do(t, New(&fakeBackend{}, nil, nil, nil).Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	s := New(&fakeBackend{}, nil, nil, nil)
	r := httptest.NewRequest(http.MethodGet, "/api/start", nil)
	r.Header.Set("Origin", "https://example.org")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	s := New(&fakeBackend{}, nil, nil, nil)

	w := do(t, s.Handler(), http.MethodGet, "/api/start", "")
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)

	r := httptest.NewRequest(http.MethodGet, "/api/start", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, r)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestChat_RateLimit(t *testing.T) {
	b := &fakeBackend{}
	s := New(b, nil, nil, nil, WithRateLimit(0.001, 2))

	body := `{"input":"hi","user_id":"u1"}`
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodPost, "/api/start", body).Code)
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodPost, "/api/start", body).Code)
	w := do(t, s.Handler(), http.MethodPost, "/api/start", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Len(t, b.queries, 2)

	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/api/start", "").Code)

	unlimited := New(&fakeBackend{}, nil, nil, nil, WithRateLimit(0, 0))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(t, unlimited.Handler(), http.MethodPost, "/api/start", body).Code)
	}
}

func TestRun_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(&fakeBackend{}, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/start")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
