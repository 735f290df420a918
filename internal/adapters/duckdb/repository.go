package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/manthysbr/localagent/internal/core/ports"
)

// schema is applied statement by statement on open.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS traces (
		id           VARCHAR PRIMARY KEY,
		query_id     VARCHAR,
		name         VARCHAR,
		status       VARCHAR,
		root_span_id VARCHAR,
		start_time   TIMESTAMP,
		end_time     TIMESTAMP,
		duration_ms  BIGINT,
		span_count   INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS spans (
		id          VARCHAR PRIMARY KEY,
		trace_id    VARCHAR,
		parent_id   VARCHAR,
		name        VARCHAR,
		kind        VARCHAR,
		status      VARCHAR,
		input       VARCHAR,
		output      VARCHAR,
		error       VARCHAR,
		model       VARCHAR,
		attributes  VARCHAR,
		start_time  TIMESTAMP,
		end_time    TIMESTAMP,
		duration_ms BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_spans_trace ON spans (trace_id)`,
}

// Repository is the DuckDB-backed trace audit log. It is write-mostly:
// the agent never reads it back.
type Repository struct {
	db *sql.DB
}

// Ensure Repository implements TraceStore
var _ ports.TraceStore = (*Repository)(nil)

// NewRepository opens (or creates) the database at path. An empty path opens
// an in-memory database.
func NewRepository(path string) (*Repository, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	// DuckDB allows a single writer per process file handle
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return &Repository{db: db}, nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}
