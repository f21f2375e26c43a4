package server

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

	"campus-tracker-service/internal/auth"
	"campus-tracker-service/internal/cache"
	"campus-tracker-service/internal/config"
	"campus-tracker-service/internal/handlers"
	"campus-tracker-service/internal/notify"
	"campus-tracker-service/internal/realtime"
	"campus-tracker-service/internal/repository"
	"campus-tracker-service/internal/service"
	"campus-tracker-service/internal/simulator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func Run() error {
	loader := config.NewLoader(os.Getenv("CONFIG_FILE"))
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	level.Set(config.ParseLevel(cfg.LogLevel))
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	loader.Watch(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	kv, closeCache, err := openCache(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer closeCache()

	// To Setup dependencies
	sms := notify.NewLogSender()
	jwt := auth.NewJWT([]byte(cfg.JWTSecret), cfg.JWTTTL)
	hub := realtime.NewHub()
	svc := service.NewService(service.Deps{
		Repo:      repo,
		Cache:     kv,
		Publisher: hub,
		SMS:       sms,
		OTP:       notify.NewOTPStore(kv, sms, cfg.OTPTTL),
		Tokens:    jwt,
		Limits: service.Limits{
			BusSpeedLimit:    cfg.BusSpeedLimit,
			AmbulanceSpeed:   cfg.AmbulanceSpeed,
			CampusSpeedLimit: cfg.CampusSpeedLimit,
		},
	})
	if err := svc.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}

	// To Setup Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), auth.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: !allowAll(cfg.CORSOrigins),
	}))

	router.GET("/socket.io/*any", gin.WrapH(hub.Handler()))
	router.POST("/socket.io/*any", gin.WrapH(hub.Handler()))
	handlers.Register(router.Group("/api"), svc, jwt)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Serve returns once the hub is closed during shutdown
		if err := hub.Serve(); err != nil && gctx.Err() == nil {
			return fmt.Errorf("socket.io: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("server listening", "addr", srv.Addr, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.SimulatorEnabled {
		sim := simulator.New(svc, cfg.SimulatorInterval)
		g.Go(func() error { return sim.Run(gctx) })
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// sockets first, so open long polls do not hold up Shutdown
		if err := hub.Close(); err != nil {
			slog.Warn("socket.io close failed", "err", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server exited")
	return nil
}

func openRepo(ctx context.Context, cfg *config.Config) (service.Repo, error) {
	switch cfg.DBDriver {
	case "mongo":
		return repository.OpenMongo(ctx, cfg.DBURL, cfg.MongoDB)
	case "sqlite":
		return repository.Open(ctx, repository.SQLite, cfg.DBURL)
	default:
		return repository.Open(ctx, repository.Postgres, cfg.DBURL)
	}
}

// openCache uses Redis when an address is configured and an in-process store otherwise.
func openCache(ctx context.Context, addr string) (cache.Store, func(), error) {
	if addr == "" {
		slog.Info("REDIS_ADDR not set, using in-process cache")
		return cache.NewMemory(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return cache.NewRedis(rdb), func() { rdb.Close() }, nil
}

func allowAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
