package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hacluster/pcsd/pkg/audit"
	"github.com/hacluster/pcsd/pkg/auth"
	"github.com/hacluster/pcsd/pkg/bus"
	"github.com/hacluster/pcsd/pkg/clock"
	"github.com/hacluster/pcsd/pkg/config"
	"github.com/hacluster/pcsd/pkg/httpapi"
	"github.com/hacluster/pcsd/pkg/log"
	"github.com/hacluster/pcsd/pkg/metrics"
	"github.com/hacluster/pcsd/pkg/registry"
	"github.com/hacluster/pcsd/pkg/scheduler"
	"github.com/hacluster/pcsd/pkg/task"
	"github.com/hacluster/pcsd/pkg/worker"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pcsd daemon",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("workers", 0, "Override worker_count from config (0 keeps the config value)")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:2225", "Address for the Prometheus /metrics endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		cfg.WorkerCount = n
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable path: %w", err)
	}

	clk := clock.Real{}
	taskBus := bus.NewTaskBus(cfg.WorkerCount*4, cfg.WorkerCount*4)

	pool := worker.New(worker.Config{Count: cfg.WorkerCount}, worker.NewSelfExecLauncher(self), taskBus)
	reg := registry.New(registry.Config{
		MaxConcurrentTasks: cfg.MaxConcurrentTasks,
		Task: task.Config{
			UnresponsiveTimeout:   cfg.TaskUnresponsiveTimeout,
			AbandonedTimeout:      cfg.TaskAbandonedTimeout,
			DefaultRequestTimeout: cfg.DefaultRequestTimeout,
		},
	}, clk, pool)

	sched := scheduler.New(scheduler.Config{TickInterval: cfg.SchedulerTickInterval}, reg, taskBus, clk)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}
	auditStore, err := audit.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	sched.SetAuditStore(auditStore)

	collector := metrics.NewCollector(reg, taskBus, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	sched.Start(ctx)
	collector.Start()

	apiServer := httpapi.New(reg, auth.NewFixedResolver(auth.Superuser, nil, true))
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: apiServer.Handler()}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux}

	errCh := make(chan error, 2)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http api server: %w", err)
		}
	}()
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	logger := log.WithComponent("pcsd")
	logger.Info().Str("http_addr", cfg.HTTPAddr).Str("metrics_addr", metricsAddr).Int("workers", cfg.WorkerCount).Msg("pcsd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	collector.Stop()
	sched.Stop()
	cancel()
	pool.Stop()
	_ = auditStore.Close()

	logger.Info().Msg("shutdown complete")
	return nil
}
