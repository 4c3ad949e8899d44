package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/poiesic/docuverse/core"
)

const (
	fieldChunk  = "chunk"
	fieldVector = "vector"

	scanBatchSize = 256
)

// RedisConfig holds connection settings for the Redis vector store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// DefaultRedisConfig returns the default Redis vector store configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		PoolSize:  10,
		KeyPrefix: "docuverse:vec:",
	}
}

// RedisStore persists chunk vectors as Redis hashes, one hash per chunk,
// keyed by prefix + chunk ID. The chunk metadata is stored as a single
// MUS-encoded field alongside the vector. Similarity search scans the
// keyspace and scores candidates client-side, which keeps the store
// usable on a plain Redis deployment without the RediSearch module.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and returns a vector store.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "docuverse:vec:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.KeyPrefix}, nil
}

func (s *RedisStore) Upsert(ctx context.Context, chunk core.Chunk, vec []float32) error {
	encoded, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	record := make([]byte, core.ChunkMUS.Size(chunk))
	core.ChunkMUS.Marshal(chunk, record)

	key := s.prefix + chunk.Id
	err = s.client.HSet(ctx, key,
		fieldChunk, record,
		fieldVector, encoded,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to upsert vector entry: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteByPrefix(ctx context.Context, documentID string) (int, error) {
	pattern := s.prefix + documentID + ":*"
	removed := 0

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan vector entries: %w", err)
		}
		if len(keys) > 0 {
			deleted, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to delete vector entries: %w", err)
			}
			removed += int(deleted)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

func (s *RedisStore) Search(ctx context.Context, vec []float32, topK int) ([]*Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	var matches []*Match
	err := s.forEachKey(ctx, s.prefix+"*", func(key string) error {
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to read vector entry %s: %w", key, err)
		}
		chunk, stored, err := decodeHashEntry(fields)
		if err != nil {
			// skip entries written by other tooling under the same prefix
			return nil
		}
		matches = append(matches, &Match{
			Chunk: chunk,
			Score: cosineSimilarity(vec, stored),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *RedisStore) Count(ctx context.Context, documentID string) (int, error) {
	count := 0
	err := s.forEachKey(ctx, s.prefix+documentID+":*", func(string) error {
		count++
		return nil
	})
	return count, err
}

func (s *RedisStore) forEachKey(ctx context.Context, pattern string, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan vector entries: %w", err)
		}
		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func decodeHashEntry(fields map[string]string) (core.Chunk, []float32, error) {
	encoded, ok := fields[fieldVector]
	if !ok {
		return core.Chunk{}, nil, fmt.Errorf("entry missing vector field")
	}
	var vec []float32
	if err := json.Unmarshal([]byte(encoded), &vec); err != nil {
		return core.Chunk{}, nil, fmt.Errorf("failed to decode vector: %w", err)
	}

	raw, ok := fields[fieldChunk]
	if !ok {
		return core.Chunk{}, nil, fmt.Errorf("entry missing chunk field")
	}
	chunk, _, err := core.ChunkMUS.Unmarshal([]byte(raw))
	if err != nil {
		return core.Chunk{}, nil, fmt.Errorf("failed to decode chunk: %w", err)
	}
	return chunk, vec, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
