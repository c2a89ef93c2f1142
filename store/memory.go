package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
)

const btreeDegree = 16

var _ Store = (*MemoryStore)(nil)

type treeItem struct {
	key   string
	entry Entry
}

func lessItem(a, b treeItem) bool { return a.key < b.key }

// MemoryStore keeps the ordered entry set in a B-tree. It is the shared core
// of the in-memory and file-backed stores; with a nil save hook it never
// touches disk.
type MemoryStore struct {
	mu   sync.Mutex
	tree *btree.BTreeG[treeItem]

	// save, when set, writes the full ordered state after every mutation.
	save func() error
}

// NewMemoryStore returns an empty store with no persistence.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tree: btree.NewG(btreeDegree, lessItem)}
}

// Get implements Store. An expired hit is deleted and persisted before the
// key is reported absent.
func (m *MemoryStore) Get(key []string) (json.RawMessage, bool, error) {
	flat, err := JoinKey(key)
	if err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.tree.Get(treeItem{key: flat})
	if !ok {
		return nil, false, nil
	}
	if item.entry.Expired(time.Now()) {
		m.tree.Delete(treeItem{key: flat})
		if err := m.persist(); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return item.entry.Value, true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(key []string, value any, expiry *time.Time) error {
	flat, err := JoinKey(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal value for %q: %w", flat, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(treeItem{key: flat, entry: Entry{Value: data, Expiry: expiry}})
	return m.persist()
}

// Remove implements Store.
func (m *MemoryStore) Remove(key []string) error {
	flat, err := JoinKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.tree.Delete(treeItem{key: flat}); !found {
		return nil
	}
	return m.persist()
}

// Scan implements Store.
func (m *MemoryStore) Scan(prefix []string) ([]ScanEntry, error) {
	flat, err := JoinKey(prefix)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var result []ScanEntry
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.AscendGreaterOrEqual(treeItem{key: flat}, func(item treeItem) bool {
		match, done := matchesPrefix(item.key, flat)
		if !match {
			return !done
		}
		if !item.entry.Expired(now) {
			result = append(result, ScanEntry{Key: SplitKey(item.key), Value: item.entry.Value})
		}
		return true
	})
	return result, nil
}

// Len returns the number of entries, including any not yet lazily expired.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Len()
}

func (m *MemoryStore) persist() error {
	if m.save == nil {
		return nil
	}
	return m.save()
}

// snapshot returns all entries in ascending flat-key order. Callers must hold mu.
func (m *MemoryStore) snapshot() []snapshotPair {
	pairs := make([]snapshotPair, 0, m.tree.Len())
	m.tree.Ascend(func(item treeItem) bool {
		pairs = append(pairs, snapshotPair{Key: item.key, Entry: item.entry})
		return true
	})
	return pairs
}

// restore replaces the tree content with the given pairs.
func (m *MemoryStore) restore(pairs []snapshotPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Clear(false)
	for _, pair := range pairs {
		m.tree.ReplaceOrInsert(treeItem{key: pair.Key, entry: pair.Entry})
	}
}
