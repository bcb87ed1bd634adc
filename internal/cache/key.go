package cache

import "strings"

// Key addresses one cache entry: an ordered tuple of scalar segments with the
// entity kind tag first, e.g. ("backlog", uid) or ("day", uid, date).
//
// Two keys are equal iff all segments compare equal. Equality defines cache
// addressing; prefix matching defines invalidation and eviction scope:
// invalidating ("day", uid) covers every ("day", uid, date).
//
// Segments must not contain '/', which is reserved as the display separator.
type Key struct {
	segs []string
}

// NewKey builds a key from ordered segments.
func NewKey(segments ...string) Key {
	segs := make([]string, len(segments))
	copy(segs, segments)
	return Key{segs: segs}
}

// Segments returns a copy of the key's segments.
func (k Key) Segments() []string {
	out := make([]string, len(k.segs))
	copy(out, k.segs)
	return out
}

// IsZero reports whether the key has no segments.
func (k Key) IsZero() bool {
	return len(k.segs) == 0
}

// Equal reports whether both keys have identical segments.
func (k Key) Equal(other Key) bool {
	if len(k.segs) != len(other.segs) {
		return false
	}
	for i := range k.segs {
		if k.segs[i] != other.segs[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix's segments are a leading subsequence of
// k's segments. Every key is a prefix of itself.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.segs) > len(k.segs) {
		return false
	}
	for i := range prefix.segs {
		if k.segs[i] != prefix.segs[i] {
			return false
		}
	}
	return true
}

// String renders the key as a path, e.g. "backlog/u-123".
func (k Key) String() string {
	return strings.Join(k.segs, "/")
}
