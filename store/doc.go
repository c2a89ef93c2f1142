// Package store implements an ordered key-value store with TTL expiry and
// prefix scans, used as the persistence substrate for OAuth credential state.
//
// Hierarchical keys (slices of string segments) are flattened into a single
// sortable string by the key codec; entries are held in a B-tree ordered by
// that flat key. Expired entries are removed lazily: Get deletes an expired
// hit as a side effect, Scan skips expired entries without deleting them.
//
// Three backends share the same Store contract: an in-memory store, a store
// persisted as a whole JSON snapshot after every mutation, and a bbolt-backed
// store for single-host durability without full-file rewrites.
package store
