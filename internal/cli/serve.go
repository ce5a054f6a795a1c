package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monagent/chainpilot/internal/agent"
	"github.com/monagent/chainpilot/internal/logging"
	"github.com/monagent/chainpilot/internal/metrics"
	"github.com/monagent/chainpilot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat passthrough",
	Long: `Serve the chat API over HTTP.

GET  /api/start   health check
POST /api/start   {"input": "...", "user_id": "..."} forwarded to the agent
GET  /metrics     Prometheus metrics

The agent is pinged on an interval so a hosted instance stays warm.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	client := agent.NewClient(cfg.Agent.URL, cfg.Agent.Timeout, logger)
	client.SetObserver(m)
	srv := server.New(client, m, registry, logger,
		server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting passthrough",
		zap.String("addr", cfg.Server.Addr),
		zap.String("agent_url", client.BaseURL()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Server.Addr)
	})
	g.Go(func() error {
		return agent.KeepAlive(gctx, client, cfg.Agent.KeepAlive, logger)
	})
	return g.Wait()
}
