package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/cache"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/catalog"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/config"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/discord"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/notify"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/remote"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/scheduler"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/session"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/storage"
	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	sink := telemetry.New(prometheus.DefaultRegisterer, store, log)

	disc, err := discord.New(cfg.DiscordToken, store, cfg.OperatorUserID, log)
	if err != nil {
		log.Error("create discord client", "error", err)
		os.Exit(1)
	}
	if err := disc.Open(); err != nil {
		log.Error("connect to discord", "error", err)
		os.Exit(1)
	}
	defer func() { _ = disc.Close() }()

	resultCache := cache.New()
	client := remote.New(&http.Client{}, sink, log)

	fetcher := catalog.New(client, resultCache, store, log, catalog.Config{
		ShopAPIURL:  cfg.ShopAPIURL,
		FNBRAPIURL:  cfg.FNBRAPIURL,
		FNBRAPIKey:  cfg.FNBRAPIKey,
		TTL:         cfg.CatalogTTL,
		MaxStaleAge: cfg.MaxStaleAge,
		Timeout:     cfg.RequestTimeout,
		Retries:     cfg.FetchRetries,
	})

	matcher := notify.New(store, disc, disc, disc, discord.BundleRenderer{}, log)
	sessions := session.New(cfg.MaxSessions)

	sched := scheduler.New(fetcher, matcher, store, resultCache, sessions, log, scheduler.Config{
		PostTime:    cfg.ShopPostTime,
		MaxStaleAge: cfg.MaxStaleAge,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		srv := newMetricsServer(cfg.MetricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	log.Info("starting item shop bot", "post_time", cfg.ShopPostTime, "enrichment", cfg.EnrichmentEnabled())

	sched.Run(ctx)

	log.Info("bot stopped")
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
