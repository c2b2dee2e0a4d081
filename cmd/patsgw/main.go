// Package main is the entry point for patsgw, the Twitter streaming
// gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jodal/patsgw/internal/buildinfo"
	"github.com/jodal/patsgw/internal/config"
	"github.com/jodal/patsgw/internal/httpkit"
	"github.com/jodal/patsgw/internal/stream"
	"github.com/jodal/patsgw/internal/web"
)

func main() {
	tunablesPath := flag.String("tunables", "", "path to an optional tunables YAML file")
	flag.Parse()

	if flag.NArg() > 0 && flag.Arg(0) == "version" {
		fmt.Println(buildinfo.String())
		info := buildinfo.Info()
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, info[k])
		}
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*tunablesPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = config.NewLogger(cfg.Settings.Debug)
	logger.Info("starting patsgw", "version", buildinfo.Version, "port", cfg.Settings.Port)

	signer := httpkit.NewOAuth1Signer(
		cfg.Secrets.ConsumerKey,
		cfg.Secrets.ConsumerSecret,
		cfg.Secrets.AccessToken,
		cfg.Secrets.AccessTokenSecret,
	)
	client := httpkit.NewClient(
		httpkit.WithTimeout(0), // upstream connections are long-lived; see internal/httpkit
		httpkit.WithOAuth1(signer),
		httpkit.WithUserAgent(buildinfo.UserAgent()),
		httpkit.WithLogger(logger),
	)

	sampleCtrl := stream.NewController(
		stream.SampleKind(stream.DefaultSampleURL),
		client,
		cfg.Settings.AllowedLanguages,
		cfg.Tunables,
		logger.With("controller", "sample"),
	)
	defer sampleCtrl.Stop()

	filterCtrl := stream.NewController(
		stream.FilterKind(stream.DefaultFilterURL),
		client,
		cfg.Settings.AllowedLanguages,
		cfg.Tunables,
		logger.With("controller", "filter"),
	)
	defer filterCtrl.Stop()

	webServer := web.NewServer(sampleCtrl, filterCtrl, logger.With("component", "web"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Settings.Port),
		Handler:           webServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
