// Package main runs the sheet daemon: the gRPC SheetService backed by the
// PostgreSQL document store and an optional Redis sheet cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/d20sheet/internal/bootstrap"
	"github.com/cory-johannsen/d20sheet/internal/config"
	"github.com/cory-johannsen/d20sheet/internal/game/engine"
	"github.com/cory-johannsen/d20sheet/internal/observability"
	"github.com/cory-johannsen/d20sheet/internal/server"
	"github.com/cory-johannsen/d20sheet/internal/sheetserver"
	"github.com/cory-johannsen/d20sheet/internal/storage/postgres"
	"github.com/cory-johannsen/d20sheet/internal/storage/redis"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the configuration")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no env file loaded from %s", *envFile)
	}

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, zap.String("service", cfg.Tracing.ServiceName))
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	tp, shutdownTracing, err := observability.NewTracerProvider(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("initializing tracing", zap.Error(err))
	}

	logger.Info("starting sheet server", zap.String("grpc_addr", cfg.Server.Addr()))

	eng, err := bootstrap.NewEngine(cfg, logger, tp.Tracer("d20sheet/engine"))
	if err != nil {
		logger.Fatal("building engine", zap.Error(err))
	}
	defer eng.Close()

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database, postgres.WithQueryLogger(logger))
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	store := postgres.NewDocumentStore(pool.DB())

	svcOpts := []engine.ServiceOption{
		engine.WithRetry(engine.RetryPolicy{Attempts: cfg.Service.RetryAttempts, Backoff: cfg.Service.RetryBackoff}),
		engine.WithConcurrency(cfg.Service.Concurrency),
	}
	srvOpts := []sheetserver.Option{
		sheetserver.WithImporter(store),
		sheetserver.WithDependents(store),
	}
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("connecting to redis", zap.Error(err))
		}
		defer client.Close()
		cache := redis.NewSheetCache(client, cfg.Redis.TTL)
		svcOpts = append(svcOpts, engine.WithCache(cache))
		srvOpts = append(srvOpts, sheetserver.WithInvalidator(cache))
		logger.Info("sheet cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	svc := engine.NewService(eng.Engine, store, logger.Named("service"), svcOpts...)
	sheetSrv := sheetserver.NewServer(svc, eng.Evaluator, logger.Named("sheetserver"), srvOpts...)

	grpcServer := grpc.NewServer()
	sheetserver.RegisterSheetServiceServer(grpcServer, sheetSrv)

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)
	lifecycle.Add("tracing", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn: func(ctx context.Context) {
			if err := shutdownTracing(ctx); err != nil {
				logger.Warn("flushing traces", zap.Error(err))
			}
		},
	})
	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.Server.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Server.Addr(), err)
			}
			return grpcServer.Serve(lis)
		},
		StopFn: func(ctx context.Context) {
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-ctx.Done():
				grpcServer.Stop()
			}
		},
	})

	logger.Info("sheet server ready",
		zap.String("grpc_addr", cfg.Server.Addr()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("sheet server exited with error", zap.Error(err))
	}
}
