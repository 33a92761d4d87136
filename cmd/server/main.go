package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"schoolops/scheduling/internal/config"
	"schoolops/scheduling/internal/db"
	schedulinggrpc "schoolops/scheduling/internal/grpc"
	internalhttp "schoolops/scheduling/internal/http"
	"schoolops/scheduling/internal/lock"
	"schoolops/scheduling/internal/logging"
	"schoolops/scheduling/internal/service"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connection failed", zap.Error(err))
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}
	store := db.NewStore(pool)

	var locker lock.Locker
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
		locker = lock.NewRedisLocker(redisClient, cfg.GroupLockTTL, cfg.GroupLockWait)
	} else {
		logger.Warn("REDIS_ADDR not set, group locks are process-local")
		locker = lock.NewLocalLocker(cfg.GroupLockWait)
	}

	scheduler := service.NewScheduler(store, store, locker, logger.Named("scheduler"))

	server, err := internalhttp.NewServer(cfg, scheduler, logger.Named("http"))
	if err != nil {
		logger.Fatal("server init failed", zap.Error(err))
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serviceAuthInterceptor, err := schedulinggrpc.NewServiceAuthUnaryInterceptor(cfg.ServiceAuthToken)
	if err != nil {
		logger.Fatal("grpc service auth init failed", zap.Error(err))
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(serviceAuthInterceptor))
	schedulinggrpc.RegisterSchedulingQueryServiceServer(grpcServer, schedulinggrpc.NewSchedulingQueryServer(scheduler, logger.Named("grpc")))

	go func() {
		logger.Info("scheduling http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc listen error", zap.Error(err))
		}
		logger.Info("scheduling grpc listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal("grpc server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()
}
