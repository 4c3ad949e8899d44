package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/poiesic/docuverse/core"
)

// PgConfig holds settings for the Postgres vector store.
type PgConfig struct {
	ConnString string
	Dimensions int
	TableName  string
}

// DefaultPgConfig returns the default Postgres vector store configuration.
func DefaultPgConfig() PgConfig {
	return PgConfig{
		Dimensions: 1536,
		TableName:  "chunk_vectors",
	}
}

// PgStore persists chunk vectors in Postgres using the pgvector extension.
// One row per chunk, keyed by the deterministic chunk ID; similarity search
// uses the cosine distance operator.
type PgStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPgStore connects to Postgres, ensures the schema exists, and returns
// the store.
func NewPgStore(ctx context.Context, cfg PgConfig) (*PgStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.TableName == "" {
		cfg.TableName = "chunk_vectors"
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PgStore{pool: pool, table: cfg.TableName}
	if err := store.ensureSchema(ctx, cfg.Dimensions); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PgStore) ensureSchema(ctx context.Context, dims int) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to enable pgvector extension: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		page_number INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	)`, s.table, dims)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_document_id_idx ON %s (document_id)`,
		s.table, s.table,
	)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("failed to create document index: %w", err)
	}
	return nil
}

func (s *PgStore) Upsert(ctx context.Context, chunk core.Chunk, vec []float32) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, document_id, chunk_index, page_number, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			chunk_index = EXCLUDED.chunk_index,
			page_number = EXCLUDED.page_number,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`, s.table)

	_, err := s.pool.Exec(ctx, query,
		chunk.Id, chunk.DocumentId, chunk.ChunkIndex, chunk.PageNumber,
		chunk.Content, pgvector.NewVector(vec),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vector entry: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteByPrefix(ctx context.Context, documentID string) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vector entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgStore) Search(ctx context.Context, vec []float32, topK int) ([]*Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT id, document_id, chunk_index, page_number, content,
			1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		var m Match
		var score float64
		if err := rows.Scan(&m.Chunk.Id, &m.Chunk.DocumentId, &m.Chunk.ChunkIndex,
			&m.Chunk.PageNumber, &m.Chunk.Content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		m.Score = float32(score)
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return matches, nil
}

func (s *PgStore) Count(ctx context.Context, documentID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE document_id = $1`, s.table)
	var count int
	if err := s.pool.QueryRow(ctx, query, documentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count vector entries: %w", err)
	}
	return count, nil
}

// Close closes the connection pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}
