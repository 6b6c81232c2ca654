package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"commitwatch/logger"
	"commitwatch/models"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisKey is the single key holding the JSON-encoded cursor state.
const redisKey = "commitwatch:cursors"

// RedisStore keeps the cursor state as one JSON value in Redis, replaced
// wholesale on every save.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}

	return &RedisStore{client: client}, nil
}

// Load reads the cursor state. A missing key or corrupt value yields an
// empty cursor so the watcher re-seeds instead of failing.
func (s *RedisStore) Load(ctx context.Context) (models.Cursor, error) {
	data, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Cursor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor state: %w", err)
	}

	var cursor models.Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		logger.Warn("Cursor state value corrupt, starting empty",
			zap.String("key", redisKey),
			zap.Error(err))
		return models.Cursor{}, nil
	}
	if cursor == nil {
		cursor = models.Cursor{}
	}
	return cursor, nil
}

// Save replaces the stored state with a single SET.
func (s *RedisStore) Save(ctx context.Context, cursor models.Cursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to encode cursor state: %w", err)
	}
	if err := s.client.Set(ctx, redisKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save cursor state: %w", err)
	}
	return nil
}

// Close closes the client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
