package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/feedsync/internal/api"
	"github.com/rickgao/feedsync/internal/auth"
	"github.com/rickgao/feedsync/internal/cache"
	"github.com/rickgao/feedsync/internal/config"
	"github.com/rickgao/feedsync/internal/metrics"
	"github.com/rickgao/feedsync/internal/model"
	"github.com/rickgao/feedsync/internal/session"
	"github.com/rickgao/feedsync/internal/state"
	"github.com/rickgao/feedsync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedsync.example.yaml", "path to config file")
	conversation := flag.String("conversation", "", "conversation to follow (overrides session.conversation)")
	flag.Parse()

	// Load configuration before logging so the level applies from the start
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *conversation != "" {
		cfg.Session.Conversation = *conversation
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedsync",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)
	logger.Info("configuration loaded",
		"api_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
		"cache_backend", cfg.Cache.Backend,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	creds, err := auth.LoadCredentials(cfg.API.Token, cfg.API.TokenPath)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	store, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		logger.Error("failed to open cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	apiClient := api.NewClient(
		cfg.API.RestURL,
		creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	sess, err := session.New(cfg, apiClient, creds.Token, store, session.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}
	watch(sess, logger)

	// Start health server early so we can monitor sync progress
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(sess, cfg.Metrics.Path),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	if err := sess.Start(ctx); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	logger.Info("feedsync running",
		"session", sess.ID(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := sess.Stop(shutdownCtx); err != nil {
		logger.Warn("session stop", "error", err)
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("feedsync stopped")
}

// watch logs every change the session publishes.
func watch(sess *session.Session, logger *slog.Logger) {
	sess.OnFeed(func(items []model.FeedItem) {
		logger.Info("feed updated", "items", len(items))
	})
	sess.OnMessages(func(items []model.Message) {
		logger.Info("conversation updated", "messages", len(items))
	})
	sess.OnNotifications(func(items []model.Notification) {
		logger.Info("notifications updated", "items", len(items))
	})
	sess.OnUnread(func(unread int) {
		logger.Info("unread count changed", "unread", unread)
	})
	sess.OnNotice(func(n state.Notice) {
		if n.Err != nil {
			logger.Warn("refresh failing", "resource", n.Resource, "error", n.Err)
			return
		}
		logger.Info("refresh recovered", "resource", n.Resource)
	})
}

// createHealthHandler creates the HTTP handler for health checks and metrics.
func createHealthHandler(sess *session.Session, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status  string          `json:"status"`
			Session *session.Status `json:"session,omitempty"`
			Error   string          `json:"error,omitempty"`
		}{
			Status: "healthy",
		}

		st, err := sess.Status(ctx)
		switch {
		case err != nil:
			health.Status = "unhealthy"
			health.Error = err.Error()
		case !st.Healthy():
			health.Status = "degraded"
			health.Session = &st
		default:
			health.Session = &st
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/feed", func(w http.ResponseWriter, r *http.Request) {
		items := sess.Feed()

		// Limit to first 100 for debugging
		limit := 100
		showing := items
		if len(showing) > limit {
			showing = showing[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   len(items),
			"showing": len(showing),
			"items":   showing,
		})
	})

	mux.Handle(metricsPath, metrics.Handler())

	return mux
}
