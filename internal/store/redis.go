package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lab-dashboard/internal/logger"
	"lab-dashboard/models"

	"github.com/redis/go-redis/v9"
)

const (
	redisDocumentsKey = "lab:documents"
	redisVersionKey   = "lab:corpus:version"
)

// RedisBackend stores each document as a JSON field of one hash
type RedisBackend struct {
	rdb redis.UniversalClient
}

func NewRedisBackend(rdb redis.UniversalClient) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) List(ctx context.Context) ([]models.Document, error) {
	fields, err := r.rdb.HGetAll(ctx, redisDocumentsKey).Result()
	if err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(fields))
	for id, raw := range fields {
		var d models.Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			logger.Warn("Skipping undecodable document in redis", "id", id, "error", err)
			continue
		}
		docs = append(docs, d)
	}
	sortByUpload(docs)
	return docs, nil
}

func (r *RedisBackend) Get(ctx context.Context, id string) (*models.Document, error) {
	raw, err := r.rdb.HGet(ctx, redisDocumentsKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var d models.Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &d, nil
}

func (r *RedisBackend) Put(ctx context.Context, doc models.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, redisDocumentsKey, doc.ID, raw).Err()
}

func (r *RedisBackend) Reset(ctx context.Context) error {
	return r.rdb.Del(ctx, redisDocumentsKey).Err()
}

// RedisVersions keeps the corpus version in a shared counter so every
// process instance sees the same value
type RedisVersions struct {
	rdb redis.UniversalClient
}

func NewRedisVersions(rdb redis.UniversalClient) *RedisVersions {
	return &RedisVersions{rdb: rdb}
}

func (r *RedisVersions) Current(ctx context.Context) (int64, error) {
	v, err := r.rdb.Get(ctx, redisVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *RedisVersions) Bump(ctx context.Context) (int64, error) {
	return r.rdb.Incr(ctx, redisVersionKey).Result()
}
