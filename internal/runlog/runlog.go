// Package runlog keeps a SQLite journal of finished block executions.
package runlog

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN keeps the journal for the lifetime of the process only.
const MemoryDSN = ":memory:"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	block_id    TEXT NOT NULL,
	block_type  TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	error_code  TEXT NOT NULL DEFAULT '',
	cause       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_block ON runs(block_id, finished_at);
`

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the journal and applies the schema. An empty dsn
// means MemoryDSN.
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	memory := dsn == MemoryDSN || strings.Contains(dsn, "mode=memory")

	source := dsn
	if !memory {
		source = dsn + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	conn, err := sql.Open("sqlite3", source)
	if err != nil {
		return nil, fmt.Errorf("runlog: open db: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("runlog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("runlog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
