package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

const redisKeyPrefix = "survey:session:"

var _ core.SessionStore = (*RedisStore)(nil)

// RedisStore keeps each session as a JSON value whose expiry is pushed
// forward on every write, so idle sessions disappear on their own.
type RedisStore struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	ttl time.Duration
}

func NewRedisStore(ctx context.Context, addr string, ttl time.Duration, log *logger.Logger) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(rdb, ttl, log), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb goredis.UniversalClient, ttl time.Duration, log *logger.Logger) *RedisStore {
	return &RedisStore{log: log.With("service", "RedisSessionStore"), rdb: rdb, ttl: ttl}
}

func (s *RedisStore) GetOrCreate(ctx context.Context, userID string, now time.Time) (*models.SurveySession, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+userID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return models.NewSurveySession(userID, now), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var sess models.SurveySession
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.log.Warn("dropping unreadable session", "user_id", userID, "error", err)
		return models.NewSurveySession(userID, now), nil
	}
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, session *models.SurveySession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+session.UserID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// SweepExpired is a no-op: keys expire in Redis itself.
func (s *RedisStore) SweepExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
