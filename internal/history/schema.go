// Package history records fresh renders in SQLite so recent ticks and their
// histograms can be inspected after the fact.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS renders (
	id           INTEGER  PRIMARY KEY AUTOINCREMENT,
	session      TEXT     NOT NULL,
	seq          INTEGER  NOT NULL,
	tick         INTEGER  NOT NULL,
	mode         TEXT     NOT NULL,
	width        INTEGER  NOT NULL,
	height       INTEGER  NOT NULL,
	frame_seq    INTEGER  NOT NULL,
	checksum     TEXT     NOT NULL DEFAULT '',
	param_gain   REAL     NOT NULL,
	param_offset REAL     NOT NULL,
	low          REAL     NOT NULL DEFAULT 0,
	high         REAL     NOT NULL DEFAULT 0,
	degenerate   INTEGER  NOT NULL DEFAULT 0,
	histogram    TEXT     NOT NULL DEFAULT '[]',
	rendered_at  DATETIME NOT NULL,
	UNIQUE(session, seq)
);

CREATE INDEX IF NOT EXISTS idx_renders_session ON renders(session, seq);
`

// DB wraps a sql.DB with render history operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
