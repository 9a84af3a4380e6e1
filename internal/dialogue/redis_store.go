package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig captures connection options for RedisStore
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration // 0 keeps state until overwritten
}

// RedisStore keeps pending dialogue state in Redis so it survives restarts.
// Only the pending state is stored, never message content.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "voice-reader:state:"
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func (s *RedisStore) key(conversationID string) string {
	return s.prefix + conversationID
}

// Get implements Store. A stored value that no longer decodes, for example
// a language removed from the catalogue, is dropped and read as Idle().
func (s *RedisStore) Get(ctx context.Context, conversationID string) (State, error) {
	raw, err := s.client.Get(ctx, s.key(conversationID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Idle(), nil
		}
		return State{}, fmt.Errorf("failed to read dialogue state: %w", err)
	}

	state, err := ParseState(raw)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("conversation_id", conversationID).
			Str("value", raw).
			Msg("Discarding undecodable dialogue state")
		if delErr := s.client.Del(ctx, s.key(conversationID)).Err(); delErr != nil {
			return State{}, fmt.Errorf("failed to discard dialogue state: %w", delErr)
		}
		return Idle(), nil
	}
	return state, nil
}

// Set implements Store
func (s *RedisStore) Set(ctx context.Context, conversationID string, state State) error {
	if err := s.client.Set(ctx, s.key(conversationID), state.String(), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write dialogue state: %w", err)
	}
	return nil
}

// Ping implements Store
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
