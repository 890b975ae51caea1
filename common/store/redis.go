package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/logger"
)

// maxUpdateRetries bounds the optimistic retry loop. A key under this much
// sustained contention indicates a hot spot, not a transient conflict.
const maxUpdateRetries = 64

// RedisStore implements Store on Redis. Update uses WATCH/MULTI/EXEC
// optimistic transactions, so concurrent transformers on the same key
// serialize and losers retry transparently.
type RedisStore struct {
	rdb *redis.Client
	log *logger.Logger
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(rdb *redis.Client, log *logger.Logger) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		log: log,
	}
}

// Get returns the document at key, or apperr.NotFound.
func (s *RedisStore) Get(ctx context.Context, key string) (Document, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.log.Debug("redis GET key not found", "key", key)
		return nil, apperr.NotFound("no document at %s", key)
	}
	if err != nil {
		s.log.Error("redis GET failed", "key", key, "error", err)
		return nil, apperr.Storage(err, "get %s", key)
	}
	return Document(val), nil
}

// Set writes the document at key unconditionally.
func (s *RedisStore) Set(ctx context.Context, key string, doc Document) error {
	if err := s.rdb.Set(ctx, key, []byte(doc), 0).Err(); err != nil {
		s.log.Error("redis SET failed", "key", key, "error", err)
		return apperr.Storage(err, "set %s", key)
	}
	s.log.Debug("redis SET", "key", key)
	return nil
}

// Update atomically transforms the document at key. The transformer may be
// invoked more than once when another writer commits first.
func (s *RedisStore) Update(ctx context.Context, key string, fn Transformer) (Document, error) {
	var final Document

	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			current, exists = nil, false
		} else if err != nil {
			return apperr.Storage(err, "read %s for update", key)
		}

		next, write, err := fn(Document(current), exists)
		if err != nil {
			return err
		}
		if !write {
			if exists {
				final = Document(current)
			}
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, []byte(next), 0)
			return nil
		})
		if err != nil {
			return err
		}
		final = next
		return nil
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.rdb.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			s.log.Debug("redis update conflict, retrying", "key", key, "attempt", attempt+1)
			continue
		}
		if err != nil {
			var tagged *apperr.Error
			if errors.As(err, &tagged) {
				return nil, err
			}
			s.log.Error("redis update failed", "key", key, "error", err)
			return nil, apperr.Storage(err, "update %s", key)
		}
		return final, nil
	}

	err := fmt.Errorf("update of %s lost %d optimistic races", key, maxUpdateRetries)
	s.log.Error("redis update exhausted retries", "key", key)
	return nil, apperr.Storage(err, "update %s", key)
}

// Destroy removes the document at key.
func (s *RedisStore) Destroy(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Error("redis DEL failed", "key", key, "error", err)
		return apperr.Storage(err, "destroy %s", key)
	}
	s.log.Debug("redis DEL", "key", key)
	return nil
}

// DestroyCollection removes every document whose key starts with prefix.
func (s *RedisStore) DestroyCollection(ctx context.Context, prefix string) error {
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.log.Error("redis SCAN failed", "prefix", prefix, "error", err)
		return apperr.Storage(err, "scan %s", prefix)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Error("redis DEL failed", "prefix", prefix, "error", err)
		return apperr.Storage(err, "destroy collection %s", prefix)
	}
	s.log.Debug("redis collection destroyed", "prefix", prefix, "keys", len(keys))
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
