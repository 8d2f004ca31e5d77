// Package snapshot persists the vector index to SQLite so it survives
// restarts. Vectors are stored as little-endian float32 blobs, which
// round-trips bit-exactly.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/finbrief/finbrief/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	text         TEXT NOT NULL,
	source       TEXT NOT NULL,
	published_at TEXT,
	embedding    BLOB NOT NULL
)`

// Store persists index snapshots in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the snapshot database at path.
// Pass ":memory:" for an in-memory database (used by tests).
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}

	// Single connection avoids "database is locked" under checkpoint bursts.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: sqlDB}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing snapshot database: %w", err)
	}
	return nil
}

// Save replaces the persisted snapshot with the given documents, atomically.
func (s *Store) Save(ctx context.Context, docs []domain.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, text, source, published_at, embedding)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		var published any
		if !doc.PublishedAt.IsZero() {
			published = doc.PublishedAt.UTC().Format(time.RFC3339Nano)
		}
		blob := encodeFloat32s(doc.Embedding)
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text, doc.Source, published, blob); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Load reads all persisted documents. An empty database yields an empty
// slice, not an error.
func (s *Store) Load(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source, published_at, embedding FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		var published sql.NullString
		var blob []byte
		if err := rows.Scan(&doc.ID, &doc.Text, &doc.Source, &published, &blob); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		if published.Valid {
			ts, err := time.Parse(time.RFC3339Nano, published.String)
			if err != nil {
				return nil, fmt.Errorf("parsing published_at for %s: %w", doc.ID, err)
			}
			doc.PublishedAt = ts
		}
		doc.Embedding, err = decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}
	return docs, nil
}

// encodeFloat32s encodes a vector as little-endian float32 bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32s(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob: len=%d (not multiple of 4)", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
