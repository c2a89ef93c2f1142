package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const boltOpenTimeout = 5 * time.Second

var entriesBucket = []byte("entries")

var _ Store = (*BoltStore)(nil)

// BoltStore implements Store on top of a bbolt database. bbolt keeps keys in
// byte order, so flat keys give ordered prefix scans without a separate
// index, and mutations are per-entry instead of whole-file rewrites.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a bbolt-backed store at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), fileDirPerm); err != nil {
		return nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	db, err := bolt.Open(path, filePerm, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, &PersistenceError{Op: "open", Path: path, Err: err}
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (b *BoltStore) Close() error { return b.db.Close() }

// Get implements Store. Runs in a write transaction so an expired hit can be
// deleted in the same step that observes it.
func (b *BoltStore) Get(key []string) (json.RawMessage, bool, error) {
	flat, err := JoinKey(key)
	if err != nil {
		return nil, false, err
	}
	var value json.RawMessage
	var found bool
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(entriesBucket)
		data := bucket.Get([]byte(flat))
		if data == nil {
			return nil
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("decode entry %q: %w", flat, err)
		}
		if entry.Expired(time.Now()) {
			return bucket.Delete([]byte(flat))
		}
		value = append(json.RawMessage(nil), entry.Value...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, &PersistenceError{Op: "get", Path: b.db.Path(), Err: err}
	}
	return value, found, nil
}

// Set implements Store.
func (b *BoltStore) Set(key []string, value any, expiry *time.Time) error {
	flat, err := JoinKey(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal value for %q: %w", flat, err)
	}
	encoded, err := json.Marshal(Entry{Value: data, Expiry: expiry})
	if err != nil {
		return fmt.Errorf("store: encode entry %q: %w", flat, err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Put([]byte(flat), encoded)
	})
	if err != nil {
		return &PersistenceError{Op: "set", Path: b.db.Path(), Err: err}
	}
	return nil
}

// Remove implements Store. Deleting an absent key is a no-op in bbolt as
// well, so the contract holds without a prior lookup.
func (b *BoltStore) Remove(key []string) error {
	flat, err := JoinKey(key)
	if err != nil {
		return err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Delete([]byte(flat))
	})
	if err != nil {
		return &PersistenceError{Op: "remove", Path: b.db.Path(), Err: err}
	}
	return nil
}

// Scan implements Store using a cursor seek to the prefix.
func (b *BoltStore) Scan(prefix []string) ([]ScanEntry, error) {
	flat, err := JoinKey(prefix)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var result []ScanEntry
	err = b.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(entriesBucket).Cursor()
		for k, v := cursor.Seek([]byte(flat)); k != nil; k, v = cursor.Next() {
			match, done := matchesPrefix(string(k), flat)
			if !match {
				if done {
					return nil
				}
				continue
			}
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode entry %q: %w", k, err)
			}
			if entry.Expired(now) {
				continue
			}
			result = append(result, ScanEntry{
				Key:   SplitKey(string(k)),
				Value: append(json.RawMessage(nil), entry.Value...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, &PersistenceError{Op: "scan", Path: b.db.Path(), Err: err}
	}
	return result, nil
}
