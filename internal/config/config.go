package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Хранилища движка
const (
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"
	StoreBackendMemory   = "memory"
)

type Config struct {
	StoreBackend       string // postgres | sqlite | memory
	DatabaseURL        string
	SQLitePath         string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	RedisURL           string
	RedisSentinelAddrs []string // Адреса Sentinel (через запятую)
	RedisMasterName    string   // Имя мастера в Sentinel
	ReportCacheTTL     time.Duration
	KafkaBrokers       string
	KafkaUsername      string
	KafkaPassword      string
	KafkaCACert        string
	LedgerTopic        string // Топик движений по журналу остатков
	LedgerGroupID      string // Consumer group для WebSocket ленты
	ServerPort         string
	GRPCPort           string
	Environment        string
}

// IsProduction - включает тихий логгер GORM и release-режим gin
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func Load() *Config {
	// Railway может использовать разные имена переменных для PostgreSQL
	// Проверяем в порядке приоритета: DATABASE_URL, POSTGRES_URL, PGDATABASE_URL, PGHOST (сборка из частей)
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		databaseURL = getEnv("POSTGRES_URL", "")
	}
	if databaseURL == "" {
		databaseURL = getEnv("PGDATABASE_URL", "")
	}
	if databaseURL == "" {
		pgHost := getEnv("PGHOST", "")
		pgPort := getEnv("PGPORT", "5432")
		pgUser := getEnv("PGUSER", "postgres")
		pgPassword := getEnv("PGPASSWORD", "")
		pgDatabase := getEnv("PGDATABASE", "inventaris")

		if pgHost != "" {
			if pgPassword != "" {
				databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
					pgUser, pgPassword, pgHost, pgPort, pgDatabase)
			} else {
				databaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=disable",
					pgUser, pgHost, pgPort, pgDatabase)
			}
		}
	}

	// Без базы поднимаемся на хранилище в памяти (локальная разработка)
	storeBackend := strings.ToLower(getEnv("STORE_BACKEND", ""))
	if storeBackend == "" {
		if databaseURL != "" {
			storeBackend = StoreBackendPostgres
		} else {
			storeBackend = StoreBackendMemory
		}
	}

	// Redis опционален: без него отчет не кэшируется
	redisURL := getEnv("REDIS_URL", "")
	if redisURL == "" {
		redisURL = getEnv("REDISCLOUD_URL", "")
	}
	if redisURL == "" {
		redisHost := getEnv("REDISHOST", "")
		redisPort := getEnv("REDISPORT", "6379")
		redisPassword := getEnv("REDISPASSWORD", "")
		redisDB := getEnv("REDISDB", "0")

		if redisHost != "" {
			if redisPassword != "" {
				redisURL = fmt.Sprintf("redis://:%s@%s:%s/%s", redisPassword, redisHost, redisPort, redisDB)
			} else {
				redisURL = fmt.Sprintf("redis://%s:%s/%s", redisHost, redisPort, redisDB)
			}
		}
	}

	// Redis Sentinel настройки
	sentinelAddrsStr := getEnv("REDIS_SENTINEL_ADDRS", "")
	var sentinelAddrs []string
	if sentinelAddrsStr != "" {
		sentinelAddrs = strings.Split(sentinelAddrsStr, ",")
		for i := range sentinelAddrs {
			sentinelAddrs[i] = strings.TrimSpace(sentinelAddrs[i])
		}
	}

	return &Config{
		StoreBackend:       storeBackend,
		DatabaseURL:        databaseURL,
		SQLitePath:         getEnv("SQLITE_PATH", "inventaris.db"),
		DBMaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 10),
		RedisURL:           redisURL,
		RedisSentinelAddrs: sentinelAddrs,
		RedisMasterName:    getEnv("REDIS_MASTER_NAME", "mymaster"),
		ReportCacheTTL:     getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaUsername:      getEnv("KAFKA_USERNAME", ""),
		KafkaPassword:      getEnv("KAFKA_PASSWORD", ""),
		KafkaCACert:        getEnv("KAFKA_CA_CERT", ""),
		LedgerTopic:        getEnv("LEDGER_TOPIC", "stock-ledger"),
		LedgerGroupID:      getEnv("LEDGER_GROUP_ID", "inventaris-ledger-ws"),
		ServerPort:         getEnv("PORT", "8080"),
		GRPCPort:           getEnv("GRPC_PORT", "50051"),
		Environment:        getEnv("ENV", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration принимает "30s", "5m" или число секунд
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
