package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dfarias/farmacia-api/internal/application/exchange"
)

const defaultKeyPrefix = "exchange:idem:"

// RedisIdempotencyStore implementación de exchange.IdempotencyStore sobre
// Redis, para despliegues con más de una instancia de la API.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ exchange.IdempotencyStore = (*RedisIdempotencyStore)(nil)

// NewRedisIdempotencyStore conecta a Redis y verifica la conexión.
func NewRedisIdempotencyStore(addr, password string, db int) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("conectando a redis: %w", err)
	}

	return &RedisIdempotencyStore{client: client, keyPrefix: defaultKeyPrefix}, nil
}

// NewRedisIdempotencyStoreWithClient construye el store sobre un cliente
// existente (útil en tests con miniredis).
func NewRedisIdempotencyStoreWithClient(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, keyPrefix: defaultKeyPrefix}
}

// MarkProcessed marca la clave como procesada con TTL. Devuelve true si la
// clave es nueva y false si ya existía (la operación ya se ejecutó). SETNX
// hace la escritura y la verificación en una sola operación atómica.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("marcando clave de idempotencia: %w", err)
	}
	return ok, nil
}

// Close cierra el cliente Redis.
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}
