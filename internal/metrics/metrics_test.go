package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/chainpilot/internal/tx"
)

func TestObserveAgentRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveAgentRequest("query", "200", 120*time.Millisecond)
	m.ObserveAgentRequest("query", "200", 80*time.Millisecond)
	m.ObserveAgentRequest("query", "error", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.agentRequestsTotal.WithLabelValues("query", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.agentRequestsTotal.WithLabelValues("query", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.agentRequestDuration))
}

func TestRecordOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	m.RecordOutcome(ctx, tx.Result{
		Pending: tx.Pending{Chain: "bnb"},
		State:   tx.StateSent,
		Outcome: &tx.Outcome{Fallback: true},
	})
	m.RecordOutcome(ctx, tx.Result{
		State: tx.StateFailed,
		Err:   &tx.Error{Kind: tx.KindUnsupportedChain, Message: "unsupported chain: doge"},
	})
	m.RecordOutcome(ctx, tx.Result{Pending: tx.Pending{Chain: "bnb"}, State: tx.StateCancelled})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("bnb", "sent", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("unknown", "failed", "unsupported_chain")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("bnb", "cancelled", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transferFallbacksTotal.WithLabelValues("bnb")))

	m.RecordOutcome(ctx, tx.Result{State: tx.StateFailed, Err: errors.New("rpc down")})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues("unknown", "failed", string(tx.KindSendFailed))))
}

func TestStatusCodeToString(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToString(http.StatusOK))
	assert.Equal(t, "3xx", statusCodeToString(http.StatusFound))
	assert.Equal(t, "4xx", statusCodeToString(http.StatusBadRequest))
	assert.Equal(t, "5xx", statusCodeToString(http.StatusBadGateway))
	assert.Equal(t, "101", statusCodeToString(http.StatusSwitchingProtocols))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/start", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/start", "/api/start", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/start", "GET", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("unmatched", "GET", "4xx")))
	require.Equal(t, 2, testutil.CollectAndCount(m.httpRequestsTotal))
}
