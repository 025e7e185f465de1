package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"inventaris/server/internal/api"
	"inventaris/server/internal/config"
	"inventaris/server/internal/database"
	"inventaris/server/internal/metrics"
	"inventaris/server/internal/models"
	"inventaris/server/internal/services"
	"inventaris/server/internal/store"
	"inventaris/server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

func main() {
	// Загружаем .env файл (если есть)
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ .env файл не найден, используем переменные окружения")
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Хранилище
	st, db, err := openStore(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	if db != nil {
		defer database.Close(db)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Redis (опционально) - кэш отчета об ответственности
	var cache services.ReportCache
	if cfg.RedisURL != "" || len(cfg.RedisSentinelAddrs) > 0 {
		redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName)
		if err != nil {
			log.Printf("⚠️ Redis недоступен, отчеты без кэша: %v", err)
		} else {
			defer database.CloseRedis(redisClient)
			cache = services.NewRedisReportCache(utils.NewRedisClient(redisClient, "inventaris:"), cfg.ReportCacheTTL, m)
			log.Printf("✅ Кэш отчетов в Redis включен (TTL %v)", cfg.ReportCacheTTL)
		}
	} else {
		log.Println("⚠️ Redis не настроен, отчеты без кэша")
	}

	// Лента движений: Kafka -> WebSocket, без Kafka - сразу в WebSocket
	hub := api.NewHub()
	go hub.Run(ctx)

	var publisher services.MovementPublisher = api.NewHubPublisher(hub)
	if brokers := api.ParseKafkaBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		dialer := api.CreateKafkaDialer(cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCACert)
		producer := api.NewLedgerProducer(brokers, cfg.LedgerTopic, dialer, m)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Printf("⚠️ Kafka Producer close: %v", err)
			}
		}()
		publisher = producer

		consumer := api.NewLedgerWSConsumer(brokers, cfg.LedgerTopic, cfg.LedgerGroupID, dialer, hub)
		consumer.Start(ctx)
		defer consumer.Close()
	} else {
		log.Println("⚠️ KAFKA_BROKERS не задан, движения идут напрямую в WebSocket")
	}

	engine := services.NewEngine(st, services.EngineOptions{
		Publisher: publisher,
		Cache:     cache,
		Metrics:   m,
	})
	log.Println("✅ Inventory engine initialized")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(engine, api.RouterOptions{
		Hub:            hub,
		MetricsHandler: metrics.Handler(prometheus.DefaultGatherer),
		RequestLog:     !cfg.IsProduction(),
	})

	// gRPC health для балансировщика
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("inventaris", healthpb.HealthCheckResponse_SERVING)
	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			log.Printf("⚠️ gRPC listen failed: %v", err)
			return
		}
		log.Printf("📡 gRPC health server starting on port %s", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("⚠️ gRPC server stopped: %v", err)
		}
	}()

	// Периодическое логирование статистики памяти
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logMemoryStats()
			}
		}
	}()

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("🚀 Server starting on port %s (store: %s)", cfg.ServerPort, cfg.StoreBackend)
		log.Printf("📡 API доступен на http://0.0.0.0:%s/api/v1", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Останавливаем сервер...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	grpcServer.GracefulStop()
}

// openStore выбирает хранилище по STORE_BACKEND и мигрирует схему для SQL
func openStore(cfg *config.Config) (store.Store, *gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		log.Println("⚠️ Хранилище в памяти: данные пропадут после перезапуска")
		return store.NewMemoryStore(), nil, nil
	case config.StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL не задан")
		}
		db, err = database.ConnectPostgres(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.IsProduction())
	case config.StoreBackendSQLite:
		db, err = database.ConnectSQLite(cfg.SQLitePath, cfg.IsProduction())
	default:
		return nil, nil, fmt.Errorf("неизвестный STORE_BACKEND %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, nil, fmt.Errorf("ошибка миграции: %w", err)
	}
	return store.NewGormStore(db), db, nil
}

// logMemoryStats логирует текущую статистику использования памяти
func logMemoryStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	heapAllocMB := float64(m.HeapAlloc) / 1024 / 1024
	sysMB := float64(m.Sys) / 1024 / 1024
	numGoroutines := runtime.NumGoroutine()

	log.Printf("💾 Memory Stats: HeapAlloc=%.2f MB, Sys=%.2f MB, GC=%d, Goroutines=%d",
		heapAllocMB, sysMB, m.NumGC, numGoroutines)

	if numGoroutines > 100 {
		log.Printf("⚠️ WARNING: High number of goroutines detected: %d (possible goroutine leak)", numGoroutines)
	}
}
