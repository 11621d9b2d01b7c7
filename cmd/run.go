package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"results-backup/internal/backup"
	"results-backup/internal/feed"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const metricsShutdownTimeout = 5 * time.Second

func newRunCommand(o *rootOptions) *cobra.Command {
	var (
		resultsFile string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the backup scheduler until interrupted",
		Long: `Run the backup scheduler in the foreground.

The results file is watched for changes and every new version becomes the
snapshot for the next backup. A backup is written immediately and then once
per interval; after each backup only the newest --max-backups files are kept.

SIGINT or SIGTERM stops the scheduler. A backup that is being written when
the signal arrives is finished first.

Examples:
  # Back up results.json with the defaults
  results-backup run --results-file results.json

  # Serve Prometheus metrics on :9102
  results-backup run --results-file results.json --metrics-addr :9102`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runScheduler(cmd.Context(), resultsFile, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&resultsFile, "results-file", "", "JSON results file to back up")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cobra.CheckErr(cmd.MarkFlagRequired("results-file"))

	return cmd
}

func (o *rootOptions) runScheduler(ctx context.Context, resultsFile, metricsAddr string) error {
	config, err := o.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := backup.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	scheduler, closeLogger, err := o.newScheduler(config, metrics)
	if err != nil {
		return err
	}
	defer closeLogger()

	watcher, err := feed.NewWatcher(resultsFile, scheduler, o.logger)
	if err != nil {
		return err
	}

	// Loaded before the scheduler starts so that the first backup already
	// carries the current results.
	if err := watcher.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.WithFields(map[string]interface{}{
			"path":  watcher.Path(),
			"error": err.Error(),
		}).Warn("Initial results load failed")
	}

	if metricsAddr != "" {
		shutdown, err := o.serveMetrics(metricsAddr, registry)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	return scheduler.Run(ctx, watcher.Run)
}

// serveMetrics starts the metrics endpoint and returns its shutdown function.
func (o *rootOptions) serveMetrics(addr string, registry *prometheus.Registry) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.logger.WithField("error", err.Error()).Error("Metrics server failed")
		}
	}()
	o.logger.WithField("address", listener.Addr().String()).Info("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			o.logger.WithField("error", err.Error()).Warn("Metrics server shutdown failed")
		}
	}, nil
}
