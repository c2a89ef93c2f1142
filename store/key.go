package store

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins key segments into a flat key. The ASCII unit separator
// sorts below every printable character, so a key that extends another by
// one segment always lands inside its parent's prefix range.
const Separator = "\x1f"

// ErrInvalidSegment reports a key segment that is empty or contains the
// separator. Segments are rejected rather than sanitized: silently stripping
// the separator would let two distinct identifiers collide on the same key.
var ErrInvalidSegment = errors.New("store: invalid key segment")

// JoinKey flattens key segments into a single sortable string.
func JoinKey(segments []string) (string, error) {
	for _, segment := range segments {
		if segment == "" {
			return "", fmt.Errorf("%w: empty segment", ErrInvalidSegment)
		}
		if strings.Contains(segment, Separator) {
			return "", fmt.Errorf("%w: segment %q contains separator", ErrInvalidSegment, segment)
		}
	}
	return strings.Join(segments, Separator), nil
}

// SplitKey is the exact inverse of JoinKey for any value JoinKey produced.
func SplitKey(flat string) []string {
	if flat == "" {
		return nil
	}
	return strings.Split(flat, Separator)
}
