// Package server is the HTTP surface served by `chainpilot serve`.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/monagent/chainpilot/internal/agent"
	"github.com/monagent/chainpilot/internal/metrics"
)

// DefaultUserID is used when the agent cannot issue one.
const DefaultUserID = "default-user-id"

const requestIDHeader = "X-Request-ID"

// Server wires the chat passthrough, health check and metrics into gin.
type Server struct {
	backend  agent.Backend
	logger   *zap.Logger
	router   *gin.Engine
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit caps chat passthrough requests at rps per second with the
// given burst. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates the HTTP server. m and gatherer may be nil, in which case
// requests are not measured and /metrics is not mounted.
func New(backend agent.Backend, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		backend:  backend,
		logger:   logger.Named("server"),
		gatherer: gatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	router.Use(cors.New(corsConfig))

	router.Use(requestID())
	router.Use(zapMiddleware(s.logger))
	router.Use(gin.Recovery())
	if m != nil {
		router.Use(metrics.GinMiddleware(m))
	}

	api := router.Group("/api")
	api.GET("/start", s.handleHealth)
	api.POST("/start", s.rateLimit(), s.handleChat)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.router = router
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type chatRequest struct {
	Input  string `json:"input"`
	UserID string `json:"user_id"`
}

type chatResponse struct {
	Output string `json:"output"`
	UserID string `json:"user_id"`
}

// handleChat forwards input to the agent unmodified. Agent failures are
// reported in output with status 200, the way the hosted frontend expects.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Input == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'input'"})
		return
	}
	ctx := c.Request.Context()

	userID := req.UserID
	if userID == "" {
		id, err := s.backend.Start(ctx)
		if err != nil {
			s.logger.Warn("failed to get user id", zap.Error(err))
			id = DefaultUserID
		}
		userID = id
	}

	env, err := s.backend.Query(ctx, userID, req.Input)
	if err != nil {
		s.logger.Warn("agent query failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusOK, chatResponse{
			Output: fmt.Sprintf("Error calling agent: %v", err),
			UserID: userID,
		})
		return
	}

	c.JSON(http.StatusOK, chatResponse{Output: env.Output, UserID: userID})
}

func zapMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDHeader)))
	}
}

// requestID keeps the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please slow down"})
			return
		}
		c.Next()
	}
}
