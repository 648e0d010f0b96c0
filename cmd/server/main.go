package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/waterlog/routeledger/internal/config"
	"github.com/waterlog/routeledger/internal/database"
	"github.com/waterlog/routeledger/internal/handler"
	"github.com/waterlog/routeledger/internal/lock"
	"github.com/waterlog/routeledger/internal/logger"
	"github.com/waterlog/routeledger/internal/metrics"
	"github.com/waterlog/routeledger/internal/middleware"
	"github.com/waterlog/routeledger/internal/queue"
	"github.com/waterlog/routeledger/internal/router"
	"github.com/waterlog/routeledger/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DB.Driver); err != nil {
		zl.Fatal("migrate database", zap.Error(err))
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	} else {
		zl.Info("redis disabled or unreachable; rate limiting, caching and route locks are off")
	}

	m := metrics.New(prometheus.DefaultRegisterer, metrics.Config{
		ServiceName: "routeledger",
		Environment: cfg.Env,
		PlantID:     cfg.PlantID,
	})

	routeCfg := service.RouteConfig{
		BottlePrice: cfg.BottlePrice,
		PlantID:     cfg.PlantID,
		Metrics:     m,
		Log:         zl,
	}
	if l := lock.NewRouteLocker(rdb, cfg.CheckInLockTTL, zl); l != nil {
		routeCfg.Locker = l
	}
	if cfg.RabbitURL != "" {
		routeCfg.Publisher = queue.NewPublisher(cfg.RabbitURL, zl)
	}
	if cfg.ConsumerEnabled {
		c := queue.NewConsumer(cfg.RabbitURL, cfg.LogDir, zl)
		go func() {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("settlement consumer stopped", zap.Error(err))
			}
		}()
	}

	repos := service.NewRepos(db)
	e := router.New(router.Deps{
		DB:             db,
		JWTSecret:      cfg.JWTSecret,
		Log:            zl,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		Auth:           handler.NewAuthHandler(cfg.JWTSecret, cfg.AccessTTLMin, repos.Users, zl),
		Routes:         handler.NewRouteHandler(service.NewRouteService(db, repos, routeCfg), zl),
		Debts:          handler.NewDebtHandler(service.NewDebtService(db, repos, m, zl), zl),
		Resources:      handler.NewResourceHandler(service.NewResourceService(db, repos, cfg.BcryptCost, zl), zl),
		RateLimit:      middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl),
		Cache:          middleware.NewRedisCache(config.LoadCacheConfig(), rdb, zl),
	})

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening",
			zap.String("addr", addr),
			zap.String("env", cfg.Env),
			zap.String("plant_id", cfg.PlantID),
			zap.String("plant_name", cfg.PlantName),
			zap.String("db_driver", cfg.DB.Driver),
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
	zl.Info("server stopped")
}
