package utils

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisClient обертка над Redis клиентом: значения хранятся в MessagePack
type RedisClient struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisClient создает обертку; keyPrefix добавляется ко всем ключам
func NewRedisClient(client *redis.Client, keyPrefix string) *RedisClient {
	return &RedisClient{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisClient) key(k string) string {
	return r.keyPrefix + k
}

// SetMsgpack сохраняет значение с TTL
func (r *RedisClient) SetMsgpack(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), data, ttl).Err()
}

// GetMsgpack читает значение в dest. found=false, если ключа нет
func (r *RedisClient) GetMsgpack(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := msgpack.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// GetInt64 читает числовое значение. found=false и 0, если ключа нет
func (r *RedisClient) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// Incr атомарно увеличивает счетчик (ключ без TTL)
func (r *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, r.key(key)).Result()
}

// Delete удаляет ключи
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.key(k)
	}
	return r.client.Del(ctx, prefixed...).Err()
}

// Ping проверяет соединение (для /health)
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetClient возвращает исходный клиент
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}
