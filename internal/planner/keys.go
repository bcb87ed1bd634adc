package planner

import "github.com/dyluth/vesper/internal/cache"

// Cache key shapes, kind tag first
//
// ("profile", uid)     - the user's profile document
// ("backlog", uid)     - the ordered backlog list
// ("day", uid, date)   - one calendar day's schedule
//
// Kind-first ordering makes prefix invalidation line up with entity scope:
// invalidating ("day", uid) covers every cached day for that user.

func profileKey(uid string) cache.Key {
	return cache.NewKey("profile", uid)
}

func backlogKey(uid string) cache.Key {
	return cache.NewKey("backlog", uid)
}

func dayKey(uid, date string) cache.Key {
	return cache.NewKey("day", uid, date)
}

func dayScope(uid string) cache.Key {
	return cache.NewKey("day", uid)
}

// Reconciliation policy: after a write settles, invalidate exactly the
// narrowest key that could have changed. An item write always invalidates
// its whole collection key - list ordering depends on item fields, so
// item-level invalidation alone would be insufficient. Refetch stays lazy:
// invalidation only marks the entry stale, the refetch happens on the next
// subscriber read, which keeps a burst of settlements down to one fetch.

func backlogScope(uid string) []cache.Key {
	return []cache.Key{backlogKey(uid)}
}

func profileScope(uid string) []cache.Key {
	return []cache.Key{profileKey(uid)}
}

func dayScopeFor(uid, date string) []cache.Key {
	return []cache.Key{dayKey(uid, date)}
}
