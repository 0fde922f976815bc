// Package sqlitekv wraps a single-table SQLite database behind the
// common Store interface. It rides the pure-Go modernc.org driver, so
// the whole harness stays cgo-free.
package sqlitekv

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tinystore-kv/tinystore/dbms/index"
)

var _ index.Store = (*SQLite)(nil)

type SQLite struct {
	db  *sql.DB
	put *sql.Stmt
	get *sql.Stmt
}

// Open opens (or creates) a SQLite database file at path holding one
// kv(k BLOB PRIMARY KEY, v BLOB) table.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: open: %w", err)
	}
	// Single connection: the harness is single-threaded and this keeps
	// the prepared statements on one session.
	db.SetMaxOpenConns(1)

	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = OFF`, // other engines run without fsync too
		`CREATE TABLE IF NOT EXISTS kv (k BLOB PRIMARY KEY, v BLOB NOT NULL) WITHOUT ROWID`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitekv: init: %w", err)
		}
	}

	put, err := db.Prepare(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitekv: prepare put: %w", err)
	}
	get, err := db.Prepare(`SELECT v FROM kv WHERE k = ?`)
	if err != nil {
		put.Close()
		db.Close()
		return nil, fmt.Errorf("sqlitekv: prepare get: %w", err)
	}
	return &SQLite{db: db, put: put, get: get}, nil
}

// Put inserts or updates the value for key.
func (s *SQLite) Put(key, value []byte) error {
	_, err := s.put.Exec(key, value)
	return err
}

// Get retrieves the value for key. Returns nil, nil if not found.
func (s *SQLite) Get(key []byte) ([]byte, error) {
	var v []byte
	err := s.get.QueryRow(key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: get: %w", err)
	}
	return v, nil
}

func (s *SQLite) Close() error {
	s.put.Close()
	s.get.Close()
	return s.db.Close()
}
