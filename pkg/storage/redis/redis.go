package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/storage"
)

const (
	keyPrefix      = "session:"
	maxTxnAttempts = 10
)

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStorage stores each session as a JSON string that expires after TTL
// of inactivity. Updates use WATCH/MULTI so concurrent writers retry instead
// of overwriting each other.
type RedisStorage struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

func NewRedisStorage(ctx context.Context, cfg Config, log logger.Logger) (*RedisStorage, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.TTL, log), nil
}

func NewWithClient(client *goredis.Client, ttl time.Duration, log logger.Logger) *RedisStorage {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStorage{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		logger: log.Named("redis-storage"),
	}
}

func key(id string) string { return keyPrefix + id }

func (r *RedisStorage) Create(ctx context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ok, err := r.client.SetNX(ctx, key(s.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

func (r *RedisStorage) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decode(data)
}

func (r *RedisStorage) Update(ctx context.Context, id string, fn storage.UpdateFunc) (*models.Session, error) {
	k := key(id)
	var result *models.Session
	var fnErr error

	txf := func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, goredis.Nil) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := decode(data)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			result, fnErr = current, err
			return nil
		}
		next.UpdatedAt = r.now()
		out, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, k, out, r.ttl)
			return nil
		})
		if err == nil {
			result, fnErr = next, nil
		}
		return err
	}

	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, k)
		if err == nil {
			return result, fnErr
		}
		if errors.Is(err, goredis.TxFailedErr) {
			r.logger.Debug("Session update conflicted, retrying",
				logger.String("sessionId", id),
				logger.Int("attempt", attempt+1),
			)
			continue
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return nil, fmt.Errorf("failed to update session %s: too many concurrent writers", id)
}

func (r *RedisStorage) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CleanupBefore is a no-op; keys expire through their TTL.
func (r *RedisStorage) CleanupBefore(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func decode(data []byte) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}
