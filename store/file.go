package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	fileDirPerm = 0o700
	filePerm    = 0o600
)

// PersistenceError wraps an I/O or decode failure from a persistence backend.
// It surfaces from the store operation that triggered the write or load.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// snapshotPair is one element of the persisted format: a two-element JSON
// array of flat key and entry, so the file reads as an ordered sequence of
// ["key", {"value": ..., "expiry": ...}] pairs.
type snapshotPair struct {
	Key   string
	Entry Entry
}

func (p snapshotPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Entry})
}

func (p *snapshotPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Entry)
}

// FileStore persists the whole ordered entry set to a JSON file after every
// mutation. Writes go through a temp file and rename, so readers never see a
// partial snapshot; concurrent writer processes are not coordinated and the
// last full save wins.
type FileStore struct {
	*MemoryStore
	path string
}

// NewFileStore opens or creates a store persisted at path. Existing content
// is loaded verbatim; a file that cannot be parsed is a *PersistenceError.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{MemoryStore: NewMemoryStore(), path: path}
	fs.MemoryStore.save = fs.saveLocked
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Path returns the snapshot file location.
func (f *FileStore) Path() string { return f.path }

// saveLocked writes the full state. Called with the store mutex held by the
// triggering mutation.
func (f *FileStore) saveLocked() error {
	data, err := json.Marshal(f.snapshot())
	if err != nil {
		return &PersistenceError{Op: "encode", Path: f.path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(f.path), fileDirPerm); err != nil {
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	return nil
}

func (f *FileStore) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &PersistenceError{Op: "load", Path: f.path, Err: err}
	}
	if len(data) == 0 {
		return nil
	}
	var pairs []snapshotPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return &PersistenceError{Op: "decode", Path: f.path, Err: err}
	}
	f.restore(pairs)
	return nil
}
