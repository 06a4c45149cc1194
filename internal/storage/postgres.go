package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/hyperjump/kenkyu/internal/models"
)

// PostgresTable implements Table on PostgreSQL with the pgvector extension. Match
// delegates to the match_embeddings function, which may use the ivfflat index.
type PostgresTable struct {
	pool *pgxpool.Pool
}

// NewPostgresTable connects to dsn. The schema from PostgresSchema must already exist.
func NewPostgresTable(ctx context.Context, dsn string) (*PostgresTable, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", models.ErrBackendUnavailable)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", models.ErrBackendUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", models.ErrBackendUnavailable, err)
	}
	return &PostgresTable{pool: pool}, nil
}

// PostgresSchema returns the DDL for the embeddings table, its cosine index and the
// match_embeddings function for vectors of the given dimension.
func PostgresSchema(dim int) string {
	return fmt.Sprintf(`-- Enable the pgvector extension
CREATE EXTENSION IF NOT EXISTS vector;

-- Table for storing embeddings
CREATE TABLE IF NOT EXISTS embeddings (
    id BIGSERIAL PRIMARY KEY,
    text TEXT NOT NULL,
    embedding vector(%[1]d),
    author_ids TEXT[] NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

-- Index for similarity search
CREATE INDEX IF NOT EXISTS embeddings_embedding_idx ON embeddings USING ivfflat (embedding vector_cosine_ops);

-- Similarity search function
CREATE OR REPLACE FUNCTION match_embeddings(
    query_embedding vector(%[1]d),
    match_threshold float,
    match_count int
)
RETURNS TABLE (
    id bigint,
    text text,
    author_ids text[],
    similarity float
)
LANGUAGE sql STABLE
AS $$
    SELECT
        e.id,
        e.text,
        e.author_ids,
        1 - (e.embedding <=> query_embedding) AS similarity
    FROM embeddings e
    WHERE 1 - (e.embedding <=> query_embedding) > match_threshold
    ORDER BY e.embedding <=> query_embedding
    LIMIT match_count;
$$;
`, dim)
}

// Type returns "postgres".
func (p *PostgresTable) Type() string { return BackendPostgres }

// Count returns the number of rows.
func (p *PostgresTable) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count: %v", models.ErrBackendUnavailable, err)
	}
	return count, nil
}

const pgInsert = `INSERT INTO embeddings (text, embedding, author_ids) VALUES ($1, $2, $3)`

// Insert inserts one record.
func (p *PostgresTable) Insert(ctx context.Context, r models.ChunkRecord) error {
	_, err := p.pool.Exec(ctx, pgInsert, r.Text, pgvector.NewVector(r.Vector), authorsOrEmpty(r.AuthorIDs))
	return err
}

// InsertBatch sends all inserts as one pipelined batch inside a transaction.
func (p *PostgresTable) InsertBatch(ctx context.Context, records []models.ChunkRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(pgInsert, r.Text, pgvector.NewVector(r.Vector), authorsOrEmpty(r.AuthorIDs))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReplaceAll truncates the table and copies records in with COPY.
func (p *PostgresTable) ReplaceAll(ctx context.Context, records []models.ChunkRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM embeddings`); err != nil {
		return err
	}
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Text, pgvector.NewVector(r.Vector), authorsOrEmpty(r.AuthorIDs)}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"embeddings"},
		[]string{"text", "embedding", "author_ids"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Match calls match_embeddings. A non-positive count fetches every row above threshold.
func (p *PostgresTable) Match(ctx context.Context, query []float32, threshold float64, count int) ([]models.QueryMatch, error) {
	var limit any = count
	if count <= 0 {
		limit = nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, text, author_ids, similarity FROM match_embeddings($1, $2, $3)`,
		pgvector.NewVector(query), threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: match: %v", models.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var matches []models.QueryMatch
	for rows.Next() {
		var m models.QueryMatch
		if err := rows.Scan(&m.ID, &m.Text, &m.AuthorIDs, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: match: %v", models.ErrBackendUnavailable, err)
	}
	return matches, nil
}

// TextsByAuthor returns texts whose author_ids array contains authorID.
func (p *PostgresTable) TextsByAuthor(ctx context.Context, authorID string, limit int) ([]string, error) {
	var lim any = limit
	if limit <= 0 {
		lim = nil
	}
	rows, err := p.pool.Query(ctx,
		`SELECT text FROM embeddings WHERE author_ids @> ARRAY[$1]::text[] ORDER BY id LIMIT $2`,
		authorID, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: texts by author: %v", models.ErrBackendUnavailable, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// All returns every row in id order.
func (p *PostgresTable) All(ctx context.Context) ([]models.ChunkRecord, error) {
	rows, err := p.pool.Query(ctx, `SELECT text, embedding, author_ids FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ChunkRecord
	for rows.Next() {
		var r models.ChunkRecord
		var v pgvector.Vector
		if err := rows.Scan(&r.Text, &v, &r.AuthorIDs); err != nil {
			return nil, err
		}
		r.Vector = v.Slice()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close releases the pool.
func (p *PostgresTable) Close() error {
	p.pool.Close()
	return nil
}

func authorsOrEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
