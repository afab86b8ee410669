package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/shop-sales/internal/adapter/handler"
	"github.com/rl1809/shop-sales/internal/adapter/handler/rpcapi"
	"github.com/rl1809/shop-sales/internal/adapter/storage"
	"github.com/rl1809/shop-sales/internal/config"
	"github.com/rl1809/shop-sales/internal/core/service"
	"github.com/rl1809/shop-sales/internal/port"
	"github.com/rl1809/shop-sales/internal/telemetry"
)

// backend is an opened store plus the function that releases it.
type backend struct {
	store port.EntityStore
	close func()
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Setup(ctx, telemetry.Config{OTLPEndpoint: cfg.OTLPEndpoint, Insecure: true}, logger)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	// Initialize services
	saleService, err := service.NewSaleService(be.store, service.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("init sale service: %w", err)
	}

	var catalog *service.CatalogService
	if full, ok := be.store.(port.Store); ok {
		catalog = service.NewCatalogService(full, full)
	} else {
		logger.Warn("backend has no catalog support, serving sale commit only", "backend", cfg.Backend)
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	var saleReader handler.SaleReader
	if catalog != nil {
		saleReader = catalog
	}
	rpcapi.RegisterSaleServiceServer(grpcServer, handler.NewGRPCHandler(saleService, saleReader))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	var limiter *handler.RateLimiter
	if cfg.RateLimited() {
		limiter = handler.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(saleService, catalog, logger).Routes(limiter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", "error", err)
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMySQL:
		return openMySQL(ctx, cfg, logger)
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, logger)
	case config.BackendRedis:
		return openRedis(ctx, cfg, logger)
	}

	mem := storage.NewMemoryAdapter()
	if cfg.SeedDemoData {
		if err := mem.Seed(ctx); err != nil {
			return nil, err
		}
	}
	logger.Info("using in-memory store")
	return &backend{store: mem, close: func() {}}, nil
}

func openMySQL(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	dsn, err := mysql.ParseDSN(cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	// UpdateCustomer relies on matched rather than changed rows.
	dsn.ClientFoundRows = true
	dsn.ParseTime = true

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	logger.Info("connected to mysql")

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if cfg.SeedDemoData {
		if err := adapter.Seed(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &backend{store: adapter, close: func() { db.Close() }}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	pool, err := storage.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	logger.Info("connected to postgres")

	adapter := storage.NewPostgresAdapter(pool)
	if err := adapter.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.SeedDemoData {
		if err := adapter.Seed(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &backend{store: adapter, close: pool.Close}, nil
}

func openRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis")

	adapter := storage.NewRedisAdapter(rdb)
	if cfg.SeedDemoData {
		if err := adapter.Seed(ctx); err != nil {
			rdb.Close()
			return nil, err
		}
	}
	return &backend{store: adapter, close: func() { rdb.Close() }}, nil
}
