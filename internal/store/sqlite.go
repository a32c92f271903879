package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStorage is an alternate [Storage] backend keeping all record blobs
// in a single SQLite table. The sharded file layout remains the normative
// wire format; this backend trades browsability for a single-file store.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLiteStorage creates or opens a SQLite-backed store at path.
// Idempotent: safe to call repeatedly on the same file.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite storage: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite storage: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Store upserts the record under key.
func (s *SQLiteStorage) Store(key OID, rec Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO records (key, record) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET record = excluded.record
	`, string(key), string(data))
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored OID. A maintenance surface for integrity
// checks; the engine itself never enumerates storage.
func (s *SQLiteStorage) Keys() ([]OID, error) {
	rows, err := s.db.Query(`SELECT key FROM records ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list storage keys: %w", err)
	}
	defer rows.Close()

	var keys []OID
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("list storage keys: %w", err)
		}
		keys = append(keys, OID(key))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list storage keys: %w", err)
	}
	return keys, nil
}

// Load reads the record under key.
func (s *SQLiteStorage) Load(key OID) (Record, error) {
	var data string
	err := s.db.QueryRow(`SELECT record FROM records WHERE key = ?`, string(key)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{OID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	rec, err := decodeRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return rec, nil
}
