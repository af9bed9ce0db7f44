package redisstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/ai-training/internal/training"
)

const keyPrefix = "ai_training:"

// statusKey returns the hash holding the latest status of a module.
func statusKey(moduleID string) string { return keyPrefix + "status:" + moduleID }

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

type CachedStatus struct {
	ModuleID string          `json:"id"`
	UserID   uint64          `json:"-"`
	Status   training.Status `json:"status"`
	At       time.Time       `json:"last_updated_at"`
}

// Notify caches the status carried by ev. It satisfies training.Notifier.
func (s *Store) Notify(ctx context.Context, ev training.Event) error {
	key := statusKey(ev.ModuleID)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"user_id", strconv.FormatUint(ev.UserID, 10),
		"status", string(ev.Status),
		"at", ev.At.UTC().Format(time.RFC3339Nano),
	)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// GetStatus returns redis.Nil when nothing is cached for moduleID.
func (s *Store) GetStatus(ctx context.Context, moduleID string) (*CachedStatus, error) {
	fields, err := s.rdb.HGetAll(ctx, statusKey(moduleID)).Result()
	if err != nil {
		return nil, err
	}
	return decodeStatus(moduleID, fields)
}

func decodeStatus(moduleID string, fields map[string]string) (*CachedStatus, error) {
	if len(fields) == 0 {
		return nil, redis.Nil
	}
	uid, err := strconv.ParseUint(fields["user_id"], 10, 64)
	if err != nil {
		return nil, errors.New("redisstore: bad user_id in cached status")
	}
	at, err := time.Parse(time.RFC3339Nano, fields["at"])
	if err != nil {
		return nil, errors.New("redisstore: bad timestamp in cached status")
	}
	return &CachedStatus{
		ModuleID: moduleID,
		UserID:   uid,
		Status:   training.Status(fields["status"]),
		At:       at,
	}, nil
}
