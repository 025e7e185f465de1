package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis подключается к Redis для кэша отчетов.
// Если заданы sentinelAddrs, используется Sentinel, иначе прямое подключение по redisURL
func ConnectRedis(redisURL string, sentinelAddrs []string, masterName string) (*redis.Client, error) {
	var client *redis.Client
	pingTimeout := 5 * time.Second
	viaSentinel := len(sentinelAddrs) > 0 && masterName != ""

	if viaSentinel {
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    masterName,
			SentinelAddrs: sentinelAddrs,
			PoolSize:      50,
			MinIdleConns:  5,
			MaxRetries:    3,
			DialTimeout:   5 * time.Second,
			ReadTimeout:   3 * time.Second,
			WriteTimeout:  3 * time.Second,
		})
		pingTimeout = 10 * time.Second
	} else {
		if redisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is empty")
		}
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opt.PoolSize = 50
		opt.MinIdleConns = 5
		opt.MaxRetries = 3
		client = redis.NewClient(opt)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if viaSentinel {
		log.Printf("✅ Redis Sentinel connected (master: %s, sentinels: %v)", masterName, sentinelAddrs)
	} else {
		log.Println("✅ Redis connected successfully (direct connection)")
	}
	return client, nil
}

// CloseRedis закрывает подключение к Redis
func CloseRedis(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
