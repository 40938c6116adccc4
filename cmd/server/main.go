package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/order-ledger/internal/adapter/handler"
	"github.com/rl1809/order-ledger/internal/adapter/metrics"
	"github.com/rl1809/order-ledger/internal/adapter/storage"
	"github.com/rl1809/order-ledger/internal/config"
	"github.com/rl1809/order-ledger/internal/core/gate"
	"github.com/rl1809/order-ledger/internal/core/inventory"
	"github.com/rl1809/order-ledger/internal/core/ledger"
	"github.com/rl1809/order-ledger/internal/core/service"
	"github.com/rl1809/order-ledger/internal/logger"
	"github.com/rl1809/order-ledger/internal/port"
	"github.com/rl1809/order-ledger/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Env: cfg.Env})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Fatal("failed to create trace exporter", zap.Error(err))
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		defer tp.Shutdown(context.Background())
	}

	// Optional archive
	var archive port.OrderArchive
	var db *sql.DB
	if cfg.MySQL.DSN != "" {
		db, err = sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			log.Fatal("failed to connect mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping mysql", zap.Error(err))
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			log.Fatal("failed to create archive schema", zap.Error(err))
		}
		archive = mysqlAdapter
		log.Info("connected to mysql")
	}

	// Optional mirror
	var mirror port.InventoryMirror
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		mirror = storage.NewRedisAdapter(rdb)
		log.Info("connected to redis")
	}

	store := inventory.NewStore()
	for _, p := range cfg.Seed {
		if err := store.AddProduct(p.Name, decimal.NewFromFloat(p.Price), p.Quantity); err != nil {
			log.Fatal("failed to seed inventory", zap.String("product", p.Name), zap.Error(err))
		}
	}
	log.Info("seeded inventory", zap.Int("products", len(cfg.Seed)))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	grpc_prometheus.EnableHandlingTimeHistogram()
	reg.MustRegister(grpc_prometheus.DefaultServerMetrics)

	queueSize := cfg.Orders.QueueSize
	if archive == nil && mirror == nil {
		queueSize = 0
	}

	orderService := service.NewOrderService(
		store,
		ledger.New(),
		gate.New(cfg.Admission.Limit),
		metrics.New(reg),
		log,
		service.Config{MaxLinesPerOrder: cfg.Orders.MaxLines, QueueSize: queueSize},
	)

	// Start sink workers
	sinkDone := make(chan error, 1)
	if queue := orderService.Queue(); queue != nil {
		sink := worker.NewSink(archive, mirror, store, log, worker.Config{Timeout: cfg.Workers.SinkTimeout})
		go func() { sinkDone <- sink.Run(queue, cfg.Workers.Count) }()
		log.Info("started sink workers", zap.Int("count", cfg.Workers.Count))
	} else {
		close(sinkDone)
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		grpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
	)
	grpcHandler := handler.NewGRPCHandler()
	grpcHandler.Register(grpcServer)
	grpc_prometheus.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPC.Port)
	if err != nil {
		log.Fatal("failed to listen", zap.String("addr", cfg.GRPC.Port), zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Port))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, store, log, cfg.Admission.Timeout)
	mux := http.NewServeMux()
	httpHandler.Routes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Port,
		Handler:      otelhttp.NewHandler(httpHandler.WithRequestID(mux), "order-ledger"),
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout + cfg.Admission.Timeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	grpcHandler.MarkServing()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	grpcHandler.MarkDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	// Handlers still running after a timed-out Shutdown record their orders
	// but skip the closed queue.
	orderService.Close()
	if err := <-sinkDone; err != nil {
		log.Error("sink workers failed", zap.Error(err))
	}
	log.Info("workers stopped")

	report := orderService.Report()
	log.Info("final state",
		zap.Int("orders", len(report.Orders)),
		zap.Any("inventory", report.Inventory),
	)

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	log.Info("connections closed")
}
