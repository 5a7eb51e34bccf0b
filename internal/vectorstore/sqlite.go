package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"glass/internal/contextmodel"
	"glass/internal/store"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS vector_contexts (
    context_type TEXT NOT NULL,
    id           TEXT NOT NULL,
    payload_json TEXT NOT NULL,
    vector       BLOB,
    dimensions   INTEGER NOT NULL DEFAULT 0,
    updated_at   TEXT NOT NULL,
    PRIMARY KEY (context_type, id)
)`

// SQLite keeps vector records in a dedicated SQLite file.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the vector database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := store.RetryOnBusy(ctx, func() error {
		_, execErr := db.ExecContext(ctx, sqliteSchema)
		return execErr
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create vector schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Name identifies the backend.
func (s *SQLite) Name() string { return "sqlite" }

// Path returns the database file location.
func (s *SQLite) Path() string { return s.path }

// BatchUpsert writes all contexts in one transaction.
func (s *SQLite) BatchUpsert(ctx context.Context, contextType contextmodel.ContextType, contexts []contextmodel.ProcessedContext) ([]string, error) {
	if err := validateBatch(contextType, contexts); err != nil {
		return nil, err
	}
	if len(contexts) == 0 {
		return []string{}, nil
	}

	ids := make([]string, 0, len(contexts))
	err := store.RetryOnBusy(ctx, func() error {
		ids = ids[:0]
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO vector_contexts (context_type, id, payload_json, vector, dimensions, updated_at)
            VALUES (?, ?, ?, ?, ?, ?)
            ON CONFLICT(context_type, id) DO UPDATE SET
                payload_json = excluded.payload_json,
                vector = excluded.vector,
                dimensions = excluded.dimensions,
                updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare vector upsert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, c := range contexts {
			payload, vector, err := encodePayload(c)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, string(contextType), c.ID, payload, encodeVector(vector), len(vector), now); err != nil {
				return fmt.Errorf("upsert vector %s: %w", c.ID, err)
			}
			ids = append(ids, c.ID)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Get loads one record.
func (s *SQLite) Get(ctx context.Context, contextType contextmodel.ContextType, id string) (*contextmodel.ProcessedContext, error) {
	var (
		payload string
		blob    []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json, vector FROM vector_contexts WHERE context_type = ? AND id = ?`,
		string(contextType), id,
	).Scan(&payload, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector %s: %w", id, err)
	}
	vector, err := decodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("get vector %s: %w", id, err)
	}
	return decodePayload(payload, vector)
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func encodeVector(vector []float32) []byte {
	if len(vector) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob has invalid length %d", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
