// Package undo persists inverse operations so recent mutations can be rolled
// back, across processes and CLI invocations. Two drivers are available: a
// JSON file store with advisory locking, and a SQLite store for boards with
// heavier traffic.
package undo

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultMaxRecords caps the undo stack. Pushing beyond the cap discards the
// oldest records.
const DefaultMaxRecords = 200

// Record is one stored inverse operation. Replaying Method with Params
// against the dispatcher reverts the original mutation.
type Record struct {
	Token     string         `json:"token"`
	Method    string         `json:"method"`
	Params    map[string]any `json:"params"`
	Label     string         `json:"label,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Store is a persistent LIFO of undo records.
type Store interface {
	// Push appends a record, trimming the oldest entries past the cap.
	Push(rec Record) error
	// Pop removes and returns the most recent record.
	Pop() (Record, bool, error)
	// Take removes and returns the record with the given token.
	Take(token string) (Record, bool, error)
	// Peek returns the most recent record without removing it.
	Peek() (Record, bool, error)
	// List returns all records, most recent first.
	List() ([]Record, error)
	// Clear discards every record.
	Clear() error
	// Close releases any underlying resources.
	Close() error
}

// NewToken returns a new sortable undo token.
func NewToken() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
}

// Open constructs a store for the given driver. Supported drivers are "file"
// and "sqlite". An empty driver selects "file".
func Open(driver, path string, max int) (Store, error) {
	if max <= 0 {
		max = DefaultMaxRecords
	}
	switch driver {
	case "", "file":
		return NewFileStore(path, max), nil
	case "sqlite":
		return OpenSQLiteStore(path, max)
	}
	return nil, &UnknownDriverError{Driver: driver}
}

// UnknownDriverError reports an unrecognized undo driver name.
type UnknownDriverError struct {
	Driver string
}

func (e *UnknownDriverError) Error() string {
	return "unknown undo driver: " + e.Driver + " (want file or sqlite)"
}
