package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kenkyu/internal/models"
)

const sqliteDriverName = "sqlite3_kenkyu"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("cosine_similarity", cosineBlobs, true)
		},
	})
}

// SQLiteTable implements Table on a local SQLite file. Similarity is computed by a
// registered cosine_similarity function, so Match is an exact scan inside the database.
type SQLiteTable struct {
	db *sql.DB
}

// NewSQLiteTable opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteTable(dbPath string) (*SQLiteTable, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(sqliteDriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteTable{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		author_ids TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_text ON embeddings(text);
	`
	_, err := db.Exec(schema)
	return err
}

// Type returns "sqlite".
func (s *SQLiteTable) Type() string { return BackendSQLite }

// Count returns the number of rows.
func (s *SQLiteTable) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count: %v", models.ErrBackendUnavailable, err)
	}
	return count, nil
}

// Insert inserts one record.
func (s *SQLiteTable) Insert(ctx context.Context, r models.ChunkRecord) error {
	authors, err := encodeAuthors(r.AuthorIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embeddings (text, embedding, author_ids) VALUES (?, ?, ?)`,
		r.Text, float32SliceToBytes(r.Vector), authors,
	)
	return err
}

// InsertBatch inserts records in a single transaction.
func (s *SQLiteTable) InsertBatch(ctx context.Context, records []models.ChunkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertRows(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceAll deletes every row and inserts records in one transaction.
func (s *SQLiteTable) ReplaceAll(ctx context.Context, records []models.ChunkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return err
	}
	if err := insertRows(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRows(ctx context.Context, tx *sql.Tx, records []models.ChunkRecord) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (text, embedding, author_ids) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		authors, err := encodeAuthors(r.AuthorIDs)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.Text, float32SliceToBytes(r.Vector), authors); err != nil {
			return err
		}
	}
	return nil
}

// Match ranks rows by cosine similarity against query.
func (s *SQLiteTable) Match(ctx context.Context, query []float32, threshold float64, count int) ([]models.QueryMatch, error) {
	var stored int
	err := s.db.QueryRowContext(ctx, `SELECT length(embedding) FROM embeddings LIMIT 1`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("%w: match: %v", models.ErrBackendUnavailable, err)
	case stored != len(query)*4:
		return nil, fmt.Errorf("%w: query has %d dimensions, table has %d",
			models.ErrDimensionMismatch, len(query), stored/4)
	}

	limit := int64(count)
	if count <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, author_ids, similarity FROM (
			SELECT id, text, author_ids, cosine_similarity(embedding, ?) AS similarity
			FROM embeddings
		 ) WHERE similarity > ? ORDER BY similarity DESC, id ASC LIMIT ?`,
		float32SliceToBytes(query), threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: match: %v", models.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var matches []models.QueryMatch
	for rows.Next() {
		var m models.QueryMatch
		var authors string
		if err := rows.Scan(&m.ID, &m.Text, &authors, &m.Similarity); err != nil {
			return nil, err
		}
		if m.AuthorIDs, err = decodeAuthors(authors); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// TextsByAuthor returns texts whose author_ids JSON array contains authorID.
func (s *SQLiteTable) TextsByAuthor(ctx context.Context, authorID string, limit int) ([]string, error) {
	lim := int64(limit)
	if limit <= 0 {
		lim = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.text FROM embeddings e
		 WHERE EXISTS (SELECT 1 FROM json_each(e.author_ids) WHERE json_each.value = ?)
		 ORDER BY e.id LIMIT ?`,
		authorID, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: texts by author: %v", models.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

// All returns every row in id order.
func (s *SQLiteTable) All(ctx context.Context) ([]models.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text, embedding, author_ids FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ChunkRecord
	for rows.Next() {
		var r models.ChunkRecord
		var blob []byte
		var authors string
		if err := rows.Scan(&r.Text, &blob, &authors); err != nil {
			return nil, err
		}
		if r.Vector, err = bytesToFloat32Slice(blob); err != nil {
			return nil, err
		}
		if r.AuthorIDs, err = decodeAuthors(authors); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteTable) Close() error {
	return s.db.Close()
}
