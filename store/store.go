package store

import (
	"encoding/json"
	"time"
)

// Entry is a stored value with an optional absolute expiry. A re-set replaces
// the whole entry; values are never merged.
type Entry struct {
	Value  json.RawMessage `json:"value"`
	Expiry *time.Time      `json:"expiry,omitempty"`
}

// Expired reports whether the entry's expiry has passed at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return e.Expiry != nil && !now.Before(*e.Expiry)
}

// ScanEntry is one live entry yielded by a prefix scan.
type ScanEntry struct {
	Key   []string
	Value json.RawMessage
}

// Store is an ordered, expiry-aware key-value store. Keys are hierarchical
// segment slices; iteration order is the lexicographic order of their flat
// encodings. Implementations must keep flat keys unique.
type Store interface {
	// Get returns the value stored under key, or false if the key is absent.
	// An expired hit is removed as a side effect and reported absent; the
	// removal is persisted, and a persistence failure surfaces here.
	Get(key []string) (json.RawMessage, bool, error)

	// Set marshals value to JSON and inserts or replaces the entry under key.
	// A nil expiry means the entry never expires.
	Set(key []string, value any, expiry *time.Time) error

	// Remove deletes the entry under key. Removing an absent key is a no-op.
	Remove(key []string) error

	// Scan returns all live entries whose key extends prefix, in ascending
	// flat-key order. Expired entries are skipped but not deleted; Scan
	// never writes.
	Scan(prefix []string) ([]ScanEntry, error)
}

// matchesPrefix reports whether flat falls inside the prefix range, and
// whether the ascending iteration can stop. Keys that merely share leading
// bytes with the prefix (e.g. "alice2" under prefix "alice") are not matches;
// the ones sorting below prefix+Separator may still precede real matches, so
// iteration continues past them.
func matchesPrefix(flat, prefix string) (match, done bool) {
	if prefix == "" {
		return true, false
	}
	if flat == prefix || (len(flat) > len(prefix) && flat[:len(prefix)+1] == prefix+Separator) {
		return true, false
	}
	return false, flat > prefix+Separator
}
