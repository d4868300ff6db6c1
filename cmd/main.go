package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/booking-core/internal/api"
	"github.com/Leganyst/booking-core/internal/app"
	"github.com/Leganyst/booking-core/internal/cache"
	"github.com/Leganyst/booking-core/internal/config"
	"github.com/Leganyst/booking-core/internal/db"
	"github.com/Leganyst/booking-core/internal/events"
	"github.com/Leganyst/booking-core/internal/lock"
	"github.com/Leganyst/booking-core/internal/model"
	"github.com/Leganyst/booking-core/internal/repository"
	"github.com/Leganyst/booking-core/internal/service"
)

func main() {
	// 1. Конфиг из env (.env необязателен).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := app.SetupTracing(ctx, cfg.OTel)
	if err != nil {
		logger.Fatal("setup tracing", zap.Error(err))
	}

	// 2. БД и миграции.
	gormDB, err := db.NewGormDB(cfg.DB)
	if err != nil {
		logger.Fatal("init db", zap.Error(err))
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		logger.Fatal("auto migrate", zap.Error(err))
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("sql DB", zap.Error(err))
	}
	defer sqlDB.Close()

	var locker lock.StaffLocker
	if cfg.DB.Driver == config.DriverPostgres {
		migrator, err := app.NewMigrator(sqlDB, logger)
		if err != nil {
			logger.Fatal("init migrator", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		locker = lock.NewPostgresLocker()
	} else {
		locker = lock.NewLocalLocker()
	}

	store := repository.NewStore(gormDB)

	// 3. Кеш слотов и публикация событий.
	var slotCache service.SlotCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		redisCache := cache.NewRedisSlotCache(rdb, cfg.Redis.SlotTTL)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, slot cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			slotCache = redisCache
		}
	}

	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	} else {
		publisher = events.NewLogPublisher(logger)
	}

	relay := events.NewRelay(store.Events, publisher, logger, events.RelayConfig{})
	go relay.Run(ctx)

	// 4. Сервисы.
	policy := service.Policy{
		CancellationNotice: cfg.Policy.CancellationNotice,
		SlotStep:           cfg.Policy.SlotStep,
		MaxSearchDays:      cfg.Policy.MaxSearchDays,
		MaxCalendarDays:    cfg.Policy.MaxCalendarDays,
	}
	slotSvc := service.NewSlotService(store, slotCache, policy, logger)
	bookingSvc := service.NewBookingService(store, locker, publisher, slotCache, policy, logger)
	calendarSvc := service.NewCalendarService(store, policy)

	// 5. gRPC-сервер.
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.UnaryServerRequestIDInterceptor(),
			api.UnaryServerLoggingInterceptor(logger),
			api.UnaryServerRecoveryInterceptor(logger),
		),
	)
	api.Register(grpcServer, api.NewSchedulingServer(slotSvc, bookingSvc, calendarSvc, logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}

	logger.Info("booking gRPC server listening", zap.String("addr", cfg.GRPCAddr))

	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatal("grpc serve", zap.Error(err))
		}
	}()

	// 6. Грейсфул-шатдаун по сигналу.
	<-ctx.Done()
	logger.Info("shutting down gRPC server")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
