// Package state keeps a local sqlite archive of finished verification runs
// so transcripts survive the TUI session that produced them.
package state

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

func Connect(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite takes one writer at a time; a single pooled conn also keeps
	// :memory: databases coherent across statements.
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		contact_id TEXT,
		contact_name TEXT,
		state TEXT,
		verdict TEXT,
		detail TEXT,
		elapsed_seconds INTEGER,
		started_at DATETIME,
		finished_at DATETIME
	);
	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		seq INTEGER,
		event_type TEXT,
		payload TEXT,
		at DATETIME
	);`
	_, err := db.Exec(schema)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}
