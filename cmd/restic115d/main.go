// Command restic115d serves a restic REST v2 repository backed by a 115
// Open Platform drive.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/gaoyifan/restic-115/internal/cloud115"
	"github.com/gaoyifan/restic-115/internal/config"
	"github.com/gaoyifan/restic-115/internal/ossclient"
	"github.com/gaoyifan/restic-115/internal/restserver"
)

func main() {
	// Self-contained healthcheck for scratch containers (no curl/wget available).
	if len(os.Args) > 1 && os.Args[1] == "-healthcheck" {
		resp, err := http.Get("http://127.0.0.1:8000/healthz")
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg := config.Load()

	if cfg.AccessToken == "" || cfg.RefreshToken == "" {
		fmt.Fprintln(os.Stderr, "OPEN115_ACCESS_TOKEN and OPEN115_REFRESH_TOKEN are required")
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
		slog.Error("failed to create spool directory", "dir", cfg.SpoolDir, "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	tokens := cloud115.NewTokenManager(httpClient, cfg.UserAgent, cloud115.Credential{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
	}, cfg.PersistTokens, cfg.TokenStorePath)

	limiter := cloud115.NewRateLimiter(cfg.RateLimitQPS)
	client := cloud115.NewClient(cfg.APIBase, cfg.UserAgent, tokens, cfg.TokenInvalidCodes, limiter)
	cache := cloud115.NewCache()
	uploader := ossclient.New()
	adapter := cloud115.NewAdapter(client, cache, uploader, cfg.RepoPath)

	server := restserver.New(adapter, cfg.SpoolDir)
	handler := server.Router()

	h2s := &http2.Server{}
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h2c.NewHandler(handler, h2s),
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ListenAddr, "repo", cfg.RepoPath, "api_base", cfg.APIBase)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
