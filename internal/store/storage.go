package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Storage is durable blob read/write keyed by OID. One blob = one record.
//
// Implementations provide no locking: exclusivity is the caller's
// responsibility, and batch durability is delegated to the surrounding
// versioned repository.
type Storage interface {
	// Store writes a record under key. Overwrite is allowed and idempotent.
	Store(key OID, rec Record) error

	// Load reads and parses the record under key. Returns [NotFoundError]
	// if no blob exists for the key.
	Load(key OID) (Record, error)
}

// FileStorage stores one JSON file per OID under a root directory.
//
// Keys at or above the shard threshold are placed under a two-level
// two-character prefix (key[0:2]/key[2:4]/key) to bound directory fan-out;
// shorter keys are stored flat. Keys are case-normalized to lowercase.
type FileStorage struct {
	root string
}

// NewFileStorage creates the root directory if needed and returns a
// file-backed Storage.
func NewFileStorage(root string) (*FileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileStorage{root: root}, nil
}

// Root returns the storage root directory.
func (s *FileStorage) Root() string { return s.root }

// Store writes rec as a JSON blob under key.
func (s *FileStorage) Store(key OID, rec Record) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create shard directory: %w", err)
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Load reads the blob under key.
func (s *FileStorage) Load(key OID) (Record, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{OID: key}
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return rec, nil
}

// Keys lists every stored OID. A maintenance surface for integrity
// checks; the engine itself never enumerates storage.
func (s *FileStorage) Keys() ([]OID, error) {
	var keys []OID
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			keys = append(keys, OID(d.Name()))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list storage keys: %w", err)
	}
	return keys, nil
}

// path maps a key to its blob location, sharding long keys.
func (s *FileStorage) path(key OID) string {
	name := strings.ToLower(string(key))
	if len(name) >= shardThreshold {
		return filepath.Join(s.root, name[0:2], name[2:4], name)
	}
	return filepath.Join(s.root, name)
}

// encodeRecord serializes a record to JSON bytes.
// HTML escaping is disabled: blobs are data files, not web content, and
// escaped angle brackets would churn version-control diffs.
func encodeRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeRecord parses JSON bytes into a record.
// Numbers are kept as json.Number so that large integers survive the trip
// without float64 precision loss; the Reader narrows them on conversion.
func decodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
