package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/john/emoterain/internal/asset"
	"github.com/john/emoterain/internal/catalog"
	"github.com/john/emoterain/internal/config"
	"github.com/john/emoterain/internal/dispatch"
	"github.com/john/emoterain/internal/emote"
	"github.com/john/emoterain/internal/kick"
	"github.com/john/emoterain/internal/message"
	"github.com/john/emoterain/internal/metrics"
	"github.com/john/emoterain/internal/overlay"
	"github.com/john/emoterain/internal/pipeline"
	"github.com/john/emoterain/internal/server"
	"github.com/john/emoterain/internal/twitch"
)

func initLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func newCatalogSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Source, error) {
	s3cfg := cfg.Catalog.S3
	if s3cfg.Bucket == "" {
		logger.Info("using catalog service", "url", cfg.Catalog.ServiceURL)
		return catalog.NewHTTPSource(cfg.Catalog.ServiceURL, cfg.FetchTimeout()), nil
	}

	if s3cfg.RoleARN != "" {
		logger.Info("using catalog mirror with OIDC authentication", "bucket", s3cfg.Bucket, "role", s3cfg.RoleARN)
	} else {
		logger.Warn("using catalog mirror with static credentials", "bucket", s3cfg.Bucket)
	}
	return catalog.NewS3Source(ctx, catalog.S3Options{
		Bucket:          s3cfg.Bucket,
		Region:          s3cfg.Region,
		Prefix:          s3cfg.Prefix,
		Endpoint:        s3cfg.Endpoint,
		RoleARN:         s3cfg.RoleARN,
		AccessKeyID:     s3cfg.AccessKeyID,
		SecretAccessKey: s3cfg.SecretAccessKey,
	})
}

func main() {
	// .env is optional; absent in production
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("emoterain starting", "config", configPath)

	logger.Info("monitoring twitch channels", "count", len(cfg.Twitch.Channels), "channels", cfg.Twitch.Channels)
	if cfg.Kick.Enabled {
		logger.Info("monitoring kick channels", "count", len(cfg.Kick.Channels))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Community catalogs
	store := catalog.NewStore()
	source, err := newCatalogSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create catalog source", "error", err)
		os.Exit(1)
	}
	fetcher := catalog.NewFetcher(source, store, logger.With("component", "catalog"))
	refresher := catalog.NewRefresher(fetcher, cfg.Twitch.Channels, cfg.RefreshInterval(), nil)

	// Resolution and fan-out
	assets := asset.NewResolver(asset.LinkLoader)
	resolver := emote.NewResolver(store, assets, emote.Options{
		Limits:             cfg.Limits(),
		CatalogURLTemplate: cfg.Catalog.AssetURLTemplate,
		PlatformEmotes:     cfg.Emotes.PlatformEmotes,
	})

	hub := overlay.NewHub(overlay.Options{
		MaxBatchesPerSecond: cfg.Overlay.MaxBatchesPerSecond,
		Burst:               cfg.Overlay.Burst,
		ClientBuffer:        cfg.Overlay.ClientBuffer,
	}, logger.With("component", "overlay"))

	dispatcher := dispatch.New(logger.With("component", "dispatch"))
	dispatcher.Subscribe(hub.Publish)
	dispatcher.Subscribe(func(b emote.Batch) error {
		ids := make([]string, len(b.Emotes))
		for i, d := range b.Emotes {
			ids[i] = d.ID
		}
		logger.Debug("emote batch", "platform", b.Platform, "channel", b.Channel, "emotes", ids)
		return nil
	})

	pipe := pipeline.New(resolver, dispatcher, func() {
		metrics.AssetsCached.Set(float64(assets.Len()))
	}, logger.With("component", "pipeline"))

	messageChan := make(chan message.Message, cfg.Pipeline.BufferSize)

	twitchConn := twitch.New(cfg.Twitch.Username, cfg.Twitch.OAuth, cfg.Twitch.Channels, logger.With("component", "twitch"))

	var kickConn *kick.Connector
	if cfg.Kick.Enabled && len(cfg.Kick.Channels) > 0 {
		kickConn = kick.New(cfg.Kick.Channels, logger.With("component", "kick"))
	}

	httpServer := server.New(cfg.Server.Addr, hub, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := refresher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("catalog refresher error", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := twitchConn.Start(ctx, messageChan); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("twitch connector error", "error", err)
		}
	}()

	if kickConn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := kickConn.Start(ctx, messageChan); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("kick connector error", "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Start(ctx, messageChan); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pipeline error", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Start(); err != nil {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("all components started")

	go func() {
		<-sigChan
		logger.Info("shutdown signal received, initiating graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down http server", "error", err)
		}
		hub.Close()

		cancel()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("all components stopped gracefully")
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout exceeded, forcing exit")
		}

		os.Exit(0)
	}()

	wg.Wait()
	logger.Info("emoterain stopped")
}
