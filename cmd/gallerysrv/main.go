// Command gallerysrv runs the authenticating media-gallery HTTP service,
// wiring config, logging, metrics, audit, the access-control engine,
// thumbnail generation, and the gallery HTTP surface together, after the
// teacher's cmd/main.go lifecycle shape.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mindflavor/gallerysrv/internal/access"
	accesscache "github.com/mindflavor/gallerysrv/internal/access/cache"
	"github.com/mindflavor/gallerysrv/internal/audit"
	"github.com/mindflavor/gallerysrv/internal/config"
	"github.com/mindflavor/gallerysrv/internal/gallery"
	"github.com/mindflavor/gallerysrv/internal/logging"
	"github.com/mindflavor/gallerysrv/internal/metrics"
	"github.com/mindflavor/gallerysrv/internal/server"
	"github.com/mindflavor/gallerysrv/internal/thumbnail"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to the gallery configuration file")
		envPrefix  = flag.String("env-prefix", "GALLERY", "environment variable prefix")
	)
	flag.Parse()
	if *configFile == "" && flag.NArg() > 0 {
		*configFile = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, closeLog, err := logging.New(cfg.LogPath, cfg.LogLevel())
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}
	defer closeLog()

	auditSink := audit.New(cfg.AuditLogPath, logger)
	defer auditSink.Close()

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(promRegistry)

	engine := access.New(cfg, auditSink, logger)
	decisionCache := buildDecisionCache(logger, cfg.DecisionCache)
	var decider access.Decider = access.NewCached(engine, decisionCache)

	thumbs := thumbnail.New(cfg.ThumbRootPath, recorder, logger)
	handlers := gallery.New(decider, thumbs, cfg.StaticSitePath, cfg.CORSOrigin, recorder, auditSink, logger)

	watcher, err := loader.Watch(func(reloaded *config.Config) {
		logger.Info("configuration reloaded", slog.Uint64("generation", reloaded.Generation()))
		newEngine := access.New(reloaded, auditSink, logger)
		handlers.SetEngine(access.NewCached(newEngine, decisionCache))
	}, func(err error) {
		logger.Error("configuration reload failed", slog.Any("error", err))
	})
	if err != nil {
		logger.Warn("configuration hot-reload disabled", slog.Any("error", err))
	} else {
		defer watcher.Stop()
	}

	galleryHandler := server.NewGalleryHandler(handlers)
	gallerySrv, err := server.New("gallery", cfg.ListenAddress, cfg.ListenPort, logger, galleryHandler)
	if err != nil {
		logger.Error("unable to construct gallery listener", slog.Any("error", err))
		os.Exit(1)
	}

	metricsHandler := server.NewMetricsHandler(recorder.Handler())
	metricsSrv, err := server.New("metrics", cfg.ListenAddress, cfg.MetricsPort, logger, metricsHandler)
	if err != nil {
		logger.Error("unable to construct metrics listener", slog.Any("error", err))
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- gallerySrv.Run(ctx) }()
	go func() { errCh <- metricsSrv.Run(ctx) }()

	var firstErr error
	for range 2 {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		logger.Error("server terminated unexpectedly", slog.Any("error", firstErr))
		fmt.Fprintln(os.Stderr, firstErr)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func buildDecisionCache(logger *slog.Logger, cfg config.DecisionCacheConfig) accesscache.DecisionCache {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", "memory":
		logger.Info("using memory decision cache", slog.Duration("ttl", ttl))
		return accesscache.NewMemory(ttl)
	case "redis":
		redisCache, err := accesscache.NewRedis(accesscache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      ttl,
		})
		if err != nil {
			logger.Error("redis cache initialization failed", slog.Any("error", err))
			logger.Info("falling back to memory cache")
			return accesscache.NewMemory(ttl)
		}
		logger.Info("using redis decision cache", slog.String("address", cfg.Redis.Address))
		return redisCache
	default:
		logger.Warn("unsupported cache backend, defaulting to memory", slog.String("backend", cfg.Backend))
		return accesscache.NewMemory(ttl)
	}
}
