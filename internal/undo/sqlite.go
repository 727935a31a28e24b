package undo

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS undo_records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	token      TEXT NOT NULL UNIQUE,
	method     TEXT NOT NULL,
	params     TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_undo_token ON undo_records(token);
`

// SQLiteStore keeps the undo stack in a SQLite database. SQLite's own locking
// replaces the advisory file lock the JSON driver needs.
type SQLiteStore struct {
	db  *sql.DB
	max int
}

// OpenSQLiteStore opens or creates the database at path. An empty path uses
// undo.db under the default cache directory.
func OpenSQLiteStore(path string, max int) (*SQLiteStore, error) {
	if path == "" {
		path = filepath.Join(defaultStackDir(), "undo.db")
	}
	if max <= 0 {
		max = DefaultMaxRecords
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps trim-and-insert transactions simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, max: max}, nil
}

// Push appends a record, discarding the oldest entries past the cap.
func (s *SQLiteStore) Push(rec Record) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO undo_records (token, method, params, label, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Token, rec.Method, string(params), rec.Label, rec.Timestamp.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`DELETE FROM undo_records WHERE id NOT IN (SELECT id FROM undo_records ORDER BY id DESC LIMIT ?)`,
		s.max,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Pop removes and returns the most recent record.
func (s *SQLiteStore) Pop() (Record, bool, error) {
	return s.takeWhere(`ORDER BY id DESC LIMIT 1`)
}

// Take removes and returns the record with the given token.
func (s *SQLiteStore) Take(token string) (Record, bool, error) {
	return s.takeWhere(`WHERE token = ?`, token)
}

func (s *SQLiteStore) takeWhere(clause string, args ...any) (Record, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Record{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT id, token, method, params, label, created_at FROM undo_records `+clause, args...)
	var id int64
	rec, err := scanRecord(row, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	if _, err := tx.Exec(`DELETE FROM undo_records WHERE id = ?`, id); err != nil {
		return Record{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Peek returns the most recent record without removing it.
func (s *SQLiteStore) Peek() (Record, bool, error) {
	row := s.db.QueryRow(`SELECT id, token, method, params, label, created_at FROM undo_records ORDER BY id DESC LIMIT 1`)
	var id int64
	rec, err := scanRecord(row, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// List returns all records, most recent first.
func (s *SQLiteStore) List() ([]Record, error) {
	rows, err := s.db.Query(`SELECT id, token, method, params, label, created_at FROM undo_records ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id int64
		rec, err := scanRecord(rows, &id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Clear discards every record.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM undo_records`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, id *int64) (Record, error) {
	var rec Record
	var params, createdAt string
	if err := row.Scan(id, &rec.Token, &rec.Method, &params, &rec.Label, &createdAt); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
		return Record{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.Timestamp = t
	}
	return rec, nil
}
