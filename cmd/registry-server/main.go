// Package main provides the form registry server entry point. It hosts the
// schema compiler, the form reader and the submission lifecycle under a
// single HTTP process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/openwis/form-registry/pkg/cache"
	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/server"
)

func main() {
	var (
		listenAddr   string
		configPath   string
		databaseType string
		databaseDSN  string
	)

	flag.StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	flag.StringVar(&configPath, "config", "/config/registry.yaml", "Path to server config")
	flag.StringVar(&databaseType, "db-type", "", "Database type (postgres, mysql or sqlite; overrides config)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string (overrides config)")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if databaseType != "" {
		cfg.Database.Type = databaseType
	}
	if databaseDSN != "" {
		cfg.Database.DSN = databaseDSN
	}

	logger.Info("starting registry server",
		"listen", cfg.ListenAddr,
		"db_type", cfg.Database.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	db, err := datastore.Open(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}
	if err := datastore.Bootstrap(db); err != nil {
		glog.Fatalf("Failed to bootstrap database types: %v", err)
	}
	if err := datastore.AutoMigrate(db); err != nil {
		glog.Fatalf("Failed to migrate metadata tables: %v", err)
	}

	cacheCfg := cache.CacheConfigFromEnv()
	cacheManager := cache.NewCacheManager(cacheCfg)

	var notifier cache.Notifier = cache.NopNotifier{}
	if cacheCfg.RedisAddr != "" {
		redisNotifier := cache.NewRedisNotifier(cacheCfg.RedisAddr, cacheCfg.Channel)
		defer redisNotifier.Close()
		go redisNotifier.Listen(ctx, cacheManager)
		notifier = redisNotifier
		logger.Info("cache invalidation over redis", "addr", cacheCfg.RedisAddr, "channel", cacheCfg.Channel)
	}

	srv := server.NewServer(db, cacheManager, notifier, logger)
	router := srv.Router(cfg)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("registry server ready", "listen", cfg.ListenAddr)

	<-ctx.Done()

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
