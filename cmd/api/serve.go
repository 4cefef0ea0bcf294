package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"aula/api/internal/app"
	"aula/api/internal/archive"
	"aula/api/internal/events"
	"aula/api/internal/export"
	"aula/api/internal/gitrepo"
	"aula/api/internal/observability"
	"aula/api/internal/store"
)

var (
	serveAddr      string
	skipMigrations bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides API_ADDR)")
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations on start")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	addr := cfg.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if !skipMigrations {
		if _, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}

	repo := store.NewPostgresStore(db)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	searchService, meiliClient := newSearch(db)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	opts := app.Options{
		Search:   searchService,
		Exporter: export.NewService(),
		Metrics:  metrics,
	}

	if dir := strings.TrimSpace(cfg.ReposDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create repos dir: %w", err)
		}
		opts.Revisions = gitrepo.New(dir)
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		publisher, err := events.NewRedisPublisher(cfg.RedisURL, cfg.EventsStream)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer publisher.Close()
		opts.Events = publisher
		logrus.WithField("stream", cfg.EventsStream).Info("publishing content events to redis")
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		snapshots, err := archive.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return fmt.Errorf("minio client failed: %w", err)
		}
		if err := snapshots.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("minio bucket failed: %w", err)
		}
		opts.Snapshots = snapshots
		logrus.WithField("bucket", cfg.MinioBucket).Info("archiving approved snapshots to minio")
	}

	service := app.NewService(repo, opts)

	if schedule := strings.TrimSpace(cfg.ReindexSchedule); schedule != "" && meiliClient != nil {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(schedule, func() {
			started := time.Now()
			sent, err := searchService.ReindexAll(ctx, repo)
			if err != nil {
				logrus.WithError(err).Warn("scheduled reindex failed")
				return
			}
			logrus.WithField("records", sent).WithField("duration_ms", time.Since(started).Milliseconds()).Info("scheduled reindex finished")
		}); err != nil {
			return fmt.Errorf("invalid reindex schedule %q: %w", schedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	httpServer := app.NewHTTPServer(service, app.HTTPOptions{
		CORSOrigin:     cfg.CORSOrigin,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        metrics,
		MetricsHandler: observability.Handler(registry),
		TokenSecret:    []byte(cfg.TokenSecret),
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("aula api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("shutdown error")
	}
	return nil
}
