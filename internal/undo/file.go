package undo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const stackFileName = "undo.json"

// LockTimeout is the maximum time to wait for acquiring the file lock.
// If exceeded, operations proceed without locking (fail-open) to avoid CLI hangs.
const LockTimeout = 100 * time.Millisecond

// FileStore keeps the undo stack in a JSON file guarded by an advisory lock,
// so concurrent boardctl processes against the same board don't clobber each
// other's records.
type FileStore struct {
	dir string
	max int
}

// NewFileStore creates a file-backed store rooted at dir. An empty dir uses
// the default location under the user cache directory.
func NewFileStore(dir string, max int) *FileStore {
	if dir == "" {
		dir = defaultStackDir()
	}
	if max <= 0 {
		max = DefaultMaxRecords
	}
	return &FileStore{dir: dir, max: max}
}

func defaultStackDir() string {
	if cacheDir := os.Getenv("XDG_CACHE_HOME"); cacheDir != "" {
		return filepath.Join(cacheDir, "boardctl", "undo")
	}
	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, "boardctl", "undo")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cache", "boardctl", "undo")
	}
	return filepath.Join(os.TempDir(), "boardctl", "undo")
}

// Dir returns the stack directory path.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the full path to the stack file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, stackFileName)
}

func (s *FileStore) lockPath() string {
	return filepath.Join(s.dir, ".lock")
}

type fileLock struct {
	flock *flock.Flock
}

// acquireLock obtains an exclusive lock on the stack directory.
//
// Fail-open semantics: returns nil with no error if the lock cannot be
// acquired within LockTimeout. A brief race window is preferable to a CLI
// command hanging behind a crashed process's stale lock.
func (s *FileStore) acquireLock() (*fileLock, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	fl := flock.New(s.lockPath())

	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}

	return &fileLock{flock: fl}, nil
}

func (fl *fileLock) release() error {
	if fl == nil || fl.flock == nil {
		return nil
	}
	return fl.flock.Unlock()
}

// stack is the on-disk shape: oldest record first.
type stack struct {
	Records []Record `json:"records"`
}

func (s *FileStore) loadUnsafe() (*stack, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &stack{}, nil
		}
		return nil, err
	}

	var st stack
	if err := json.Unmarshal(data, &st); err != nil {
		// Corrupted file: start fresh rather than wedging every command.
		return &stack{}, nil
	}
	return &st, nil
}

func (s *FileStore) saveUnsafe(st *stack) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	// Write atomically via temp file with unique name (PID + timestamp)
	// to avoid conflicts when the lock could not be acquired.
	tmpPath := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return nil
}

func (s *FileStore) update(fn func(*stack) error) error {
	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	st, err := s.loadUnsafe()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.saveUnsafe(st)
}

// Push appends a record, discarding the oldest entries past the cap.
func (s *FileStore) Push(rec Record) error {
	return s.update(func(st *stack) error {
		st.Records = append(st.Records, rec)
		if len(st.Records) > s.max {
			st.Records = st.Records[len(st.Records)-s.max:]
		}
		return nil
	})
}

// Pop removes and returns the most recent record.
func (s *FileStore) Pop() (Record, bool, error) {
	var rec Record
	found := false
	err := s.update(func(st *stack) error {
		if len(st.Records) == 0 {
			return nil
		}
		rec = st.Records[len(st.Records)-1]
		st.Records = st.Records[:len(st.Records)-1]
		found = true
		return nil
	})
	return rec, found, err
}

// Take removes and returns the record with the given token.
func (s *FileStore) Take(token string) (Record, bool, error) {
	var rec Record
	found := false
	err := s.update(func(st *stack) error {
		for i, r := range st.Records {
			if r.Token == token {
				rec = r
				st.Records = append(st.Records[:i], st.Records[i+1:]...)
				found = true
				return nil
			}
		}
		return nil
	})
	return rec, found, err
}

// Peek returns the most recent record without removing it.
func (s *FileStore) Peek() (Record, bool, error) {
	lock, err := s.acquireLock()
	if err != nil {
		return Record{}, false, err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	st, err := s.loadUnsafe()
	if err != nil {
		return Record{}, false, err
	}
	if len(st.Records) == 0 {
		return Record{}, false, nil
	}
	return st.Records[len(st.Records)-1], true, nil
}

// List returns all records, most recent first.
func (s *FileStore) List() ([]Record, error) {
	lock, err := s.acquireLock()
	if err != nil {
		return nil, err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	st, err := s.loadUnsafe()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(st.Records))
	for i := len(st.Records) - 1; i >= 0; i-- {
		out = append(out, st.Records[i])
	}
	return out, nil
}

// Clear removes the stack file.
func (s *FileStore) Clear() error {
	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	err = os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }
