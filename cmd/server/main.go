package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workflow/backend/config"
	"workflow/backend/internal/api/handler"
	"workflow/backend/internal/api/middleware"
	"workflow/backend/internal/api/router"
	"workflow/backend/internal/repository"
	"workflow/backend/internal/service"
	"workflow/backend/pkg/database"
	"workflow/backend/pkg/event"
	"workflow/backend/pkg/jwt"
	applogger "workflow/backend/pkg/logger"
	"workflow/backend/pkg/redis"
	"workflow/backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config/config.yaml)")
	flag.Parse()

	// 1. configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. database + migrations
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("unwrap sql.DB failed", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	// 4. redis, optional: logout revocation, rate limiting and pending
	// uploads degrade when it is down
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, running without token blacklist and rate limiting", zap.Error(err))
		rdb = nil
	}

	// 5. object storage, optional: clients fall back to multipart uploads
	var store storage.ObjectStore
	if cfg.Storage.Enabled() {
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sc, err := storage.NewClient(initCtx, &cfg.Storage, logger)
		cancel()
		if err != nil {
			logger.Warn("object storage unavailable, presigned uploads disabled", zap.Error(err))
		} else {
			store = sc
		}
	}

	// 6. event bus + audit consumer
	bus, err := event.NewBus(&cfg.Event, logger)
	if err != nil {
		logger.Fatal("event bus init failed", zap.Error(err))
	}
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		if err := bus.RunAudit(auditCtx); err != nil {
			logger.Error("audit consumer stopped", zap.Error(err))
		}
	}()

	// 7. repository → service → handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, rdb, store, bus, logger)
	h := handler.NewHandler(svc, logger)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.RegisterValidators(); err != nil {
		logger.Fatal("register validators failed", zap.Error(err))
	}
	engine := router.Setup(cfg, h, jwtMgr, svc.Auth, rdb, logger)

	// 8. HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	stopAudit()
	if err := bus.Close(); err != nil {
		logger.Warn("event bus close failed", zap.Error(err))
	}
	select {
	case <-auditDone:
	case <-ctx.Done():
	}

	if err := sqlDB.Close(); err != nil {
		logger.Warn("database close failed", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}

	logger.Info("stopped")
}
