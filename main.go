package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"strava-activity-mapper/internal/config"
	"strava-activity-mapper/internal/database"
	"strava-activity-mapper/internal/handlers"
	"strava-activity-mapper/internal/metrics"
	"strava-activity-mapper/internal/middleware"
	"strava-activity-mapper/internal/oauth"
	"strava-activity-mapper/internal/pipeline"
	"strava-activity-mapper/internal/scheduler"
	"strava-activity-mapper/internal/session"
	"strava-activity-mapper/internal/strava"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func run(cfg *config.Config, logger *slog.Logger) (err error) {
	logger.Info("starting_server",
		"host", cfg.Host,
		"port", cfg.Port,
		"public_url", cfg.PublicURL,
		"database", cfg.DatabasePath,
		"fetch_concurrency", cfg.FetchConcurrency,
		"log_level", cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, db.Close())
	}()

	stravaClient := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret, logger)
	stravaClient.SetRequestRate(cfg.RequestsPerSecond, cfg.FetchConcurrency)
	defer stravaClient.CloseIdleConnections()

	fetcher := strava.NewFetcher(stravaClient, strava.MaxPerPage, cfg.FetchConcurrency, logger)
	p := pipeline.New(fetcher, cfg.Chart, nil, logger)

	dashboards := session.NewDashboardCache(cfg.DashboardCacheMB, cfg.SessionTTL())
	sessions := session.NewManager(db, dashboards, cfg.SessionTTL(), strings.HasPrefix(cfg.PublicURL, "https://"), logger)
	oauthManager := oauth.NewManager(db, stravaClient, cfg.RedirectURI(), cfg.Chart.Scope, logger)

	oauthHandler := handlers.NewOAuthHandler(oauthManager, sessions, p, cfg.Chart, logger)
	dashboardHandler := handlers.NewDashboardHandler(sessions, p, cfg.Chart, logger)
	healthHandler := handlers.NewHealthHandler(db, logger)

	mux := http.NewServeMux()

	// OAuth endpoints
	mux.Handle("/oauth-start", middleware.WrapHandler(metrics.EndpointOAuthStart, logger, oauthHandler.HandleAuthStart))
	mux.Handle("/oauth-callback", middleware.WrapHandler(metrics.EndpointOAuthCallback, logger, oauthHandler.HandleCallback))

	// Dashboard API
	mux.Handle("/api/dashboard", middleware.WrapHandler(metrics.EndpointDashboard, logger, dashboardHandler.HandleDashboard))
	mux.Handle("/api/activities", middleware.WrapHandler(metrics.EndpointActivities, logger, dashboardHandler.HandleActivities))
	mux.Handle("/api/refresh", middleware.WrapHandler(metrics.EndpointRefresh, logger, dashboardHandler.HandleRefresh))
	mux.Handle("/api/demo", middleware.WrapHandler(metrics.EndpointDemo, logger, dashboardHandler.HandleDemo))

	mux.Handle("/health", middleware.WrapHandler(metrics.EndpointHealth, logger, healthHandler.HandleHealth))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // a full activity fetch runs inside the request
		IdleTimeout:  120 * time.Second,
	}

	// Periodic cleanup of expired sessions, their dashboards and OAuth states
	jobs := scheduler.New(cfg.CleanupInterval(), logger)
	jobs.AddSessionCleanup(sessions)
	jobs.AddStateCleanup(db)
	if err := jobs.Start(); err != nil {
		return err
	}
	defer jobs.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		go metrics.StartSessionCollector(ctx, db, 15*time.Second)

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info("metrics_server_listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics_server_failed", "error", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http_server_listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutting_down")
	case err = <-serverErr:
		logger.Error("http_server_failed", "error", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err = multierr.Append(err, server.Shutdown(shutdownCtx))
	if metricsServer != nil {
		err = multierr.Append(err, metricsServer.Shutdown(shutdownCtx))
	}

	logger.Info("server_stopped")
	return err
}
