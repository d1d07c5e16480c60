// Package repository provides the engine's data access layer over
// PostgreSQL.
//
// The store owns the engine's tables (packs, governance records, the rule
// catalog, the job queue) and holds read-only queries against the
// compliance record tables (obligations, evidence, documents,
// non-conformances, assessments) whose CRUD management lives elsewhere.
package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store executes queries against the database. Methods are safe for
// concurrent use; the underlying *sql.DB pools connections.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

// DBTX abstracts *sql.DB and *sql.Tx so store methods run inside or outside
// a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// New creates a Store backed by the given database handle.
func New(db DBTX, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// WithTx returns a Store that runs its queries on the given transaction.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx, logger: s.logger}
}

// uuidStrings converts a uuid slice to the string slice pq.Array binds as a
// Postgres array parameter.
func uuidStrings(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// parseUUIDs converts a scanned text array back to uuids, skipping values
// that fail to parse.
func parseUUIDs(raw pq.StringArray) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}
