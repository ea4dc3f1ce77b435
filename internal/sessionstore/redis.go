package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore serializa records como JSON bajo "<prefix>:sess:<id>" con TTL
// nativo de Redis. List recorre el namespace con SCAN para no bloquear.
type redisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis crea un Store sobre Redis y verifica conectividad.
func NewRedis(cfg Config) (Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("sessionstore: redis ping: %w", err)
	}
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "sires"
	}
	return &redisStore{rdb: rdb, prefix: prefix}, nil
}

func (r *redisStore) key(id string) string {
	return r.prefix + ":sess:" + id
}

func (r *redisStore) Put(ctx context.Context, rec *Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return r.Delete(ctx, rec.ID)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal record: %w", err)
	}
	return r.rdb.Set(ctx, r.key(rec.ID), raw, ttl).Err()
}

func (r *redisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("sessionstore: unmarshal record: %w", err)
	}
	return &rec, nil
}

func (r *redisStore) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, r.key(id)).Err()
}

func (r *redisStore) List(ctx context.Context) ([]*Record, error) {
	var out []*Record
	iter := r.rdb.Scan(ctx, 0, r.prefix+":sess:*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := r.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // venció entre el SCAN y el GET
		}
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *redisStore) PurgeExpired(context.Context) (int64, error) {
	// Redis expira por TTL; no hay nada que purgar.
	return 0, nil
}

func (r *redisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *redisStore) Close() error {
	return r.rdb.Close()
}
