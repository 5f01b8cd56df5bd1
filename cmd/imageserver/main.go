// Command imageserver runs the IIIF Image API v1/v2/v3 and Deep Zoom HTTP
// server: it loads configuration, builds the cache facade and request
// handlers, and serves the Resource Router over fasthttp until signaled
// to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/internal/cache"
	"github.com/galia-project/iiifcore/internal/common/logger"
	"github.com/galia-project/iiifcore/internal/common/metricsserver"
	"github.com/galia-project/iiifcore/internal/common/redis"
	"github.com/galia-project/iiifcore/internal/config"
	"github.com/galia-project/iiifcore/internal/handler"
	"github.com/galia-project/iiifcore/internal/imagecodec"
	"github.com/galia-project/iiifcore/internal/infofactory"
	"github.com/galia-project/iiifcore/internal/metrics"
	"github.com/galia-project/iiifcore/internal/router"
	"github.com/galia-project/iiifcore/internal/server"
	"github.com/galia-project/iiifcore/internal/session"
	"github.com/galia-project/iiifcore/internal/source"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

const requestTimeout = 60 * time.Second

func main() {
	configPath := flag.String("c", "configs/imageserver.yaml", "path to configuration file")
	flag.Parse()

	bootLogger, err := logger.NewLogger(config.LogConfig{Level: "info", Console: config.ConsoleConfig{Enabled: true, Level: "info", Format: "console"}})
	if err != nil {
		log.Fatalf("failed to create startup logger: %v", err)
	}

	mgr, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Fatal("failed to load configuration", zap.Error(err))
	}
	cfg := mgr.Get()

	appLogger, err := logger.NewLogger(cfg.Log)
	if err != nil {
		bootLogger.Fatal("failed to create configured logger", zap.Error(err))
	}
	defer appLogger.Sync()
	zlog := appLogger.Logger

	var redisClient *redis.Client
	if cfg.Cache.VariantBackend == config.BackendRedis || cfg.Cache.InfoBackend == config.BackendRedis {
		redisClient, err = redis.NewClient(&cfg.Redis, zlog)
		if err != nil {
			zlog.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	facade, err := cache.Build(cfg.Cache, redisClient, zlog)
	if err != nil {
		zlog.Fatal("failed to build cache facade", zap.Error(err))
	}

	sessions := session.New(30 * time.Minute)
	sessionStop := make(chan struct{})
	go sessions.RunEvictionLoop(5*time.Minute, sessionStop)
	defer close(sessionStop)

	formats := iiif.NewFormatRegistry(iiif.DefaultFormats()...)
	codecs := imagecodec.NewRegistry() // concrete decoders/encoders are registered by the deployment
	resolver := source.New(cfg)

	infoHandler := &handler.InfoHandler{Cache: facade, Resolver: resolver, Codecs: codecs, Cfg: cfg.Cache, Logger: zlog}
	imageHandler := &handler.ImageHandler{Cache: facade, Resolver: resolver, Codecs: codecs, Cfg: cfg.Cache, Logger: zlog}
	factory := infofactory.New(cfg.Imaging, formats)

	rt := &router.Router{
		Config:  cfg,
		Info:    infoHandler,
		Image:   imageHandler,
		Factory: factory,
		Formats: formats,
		Logger:  zlog,
	}

	collector := metrics.New("iiifcore", zlog)
	metricsSrv, err := metricsserver.StartMetricsServer(cfg.MetricsAddr != "", cfg.MetricsAddr, "/metrics", collector, zlog)
	if err != nil {
		zlog.Fatal("failed to start metrics server", zap.Error(err))
	}

	fasthttpSrv := server.NewFastHTTPServer(rt.Handler(), requestTimeout)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	lifecycle := server.NewLifecycle("image-server", addr, fasthttpSrv, zlog)

	errChan := make(chan error, 1)
	lifecycle.Start(errChan)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zlog.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		zlog.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := lifecycle.Shutdown(shutdownCtx); err != nil {
		zlog.Error("error during server shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.ShutdownWithContext(shutdownCtx); err != nil {
			zlog.Error("error during metrics server shutdown", zap.Error(err))
		}
	}

	zlog.Info("image server stopped")
}
