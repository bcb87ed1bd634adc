package store

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by workspace name so
// several Vesper environments (prod, staging, per-developer) can share one
// Redis server.
//
// Key pattern: vesper:{workspace}:user:{uid}:{document...}
// Channel pattern: vesper:{workspace}:user:{uid}:events

// ProfileKey returns the Redis key for a user's profile document.
// Pattern: vesper:{workspace}:user:{uid}:profile
func ProfileKey(workspace, uid string) string {
	return fmt.Sprintf("vesper:%s:user:%s:profile", workspace, uid)
}

// BacklogItemKey returns the Redis key for a single backlog item document.
// Pattern: vesper:{workspace}:user:{uid}:backlog:{item_id}
func BacklogItemKey(workspace, uid, itemID string) string {
	return fmt.Sprintf("vesper:%s:user:%s:backlog:%s", workspace, uid, itemID)
}

// BacklogIndexKey returns the Redis key for the backlog ordering ZSET.
// Members are item IDs, scores are UpdatedAtMs; listing reads the ZSET in
// descending score order (most recently updated first).
// Pattern: vesper:{workspace}:user:{uid}:backlog_index
func BacklogIndexKey(workspace, uid string) string {
	return fmt.Sprintf("vesper:%s:user:%s:backlog_index", workspace, uid)
}

// ActivityKey returns the Redis key for a scheduled activity document.
// Pattern: vesper:{workspace}:user:{uid}:day:{date}:{activity_id}
func ActivityKey(workspace, uid, date, activityID string) string {
	return fmt.Sprintf("vesper:%s:user:%s:day:%s:%s", workspace, uid, date, activityID)
}

// DayIndexKey returns the Redis key for a day's ordering ZSET.
// Members are activity IDs, scores are window start minutes; listing reads
// the ZSET in ascending score order.
// Pattern: vesper:{workspace}:user:{uid}:day_index:{date}
func DayIndexKey(workspace, uid, date string) string {
	return fmt.Sprintf("vesper:%s:user:%s:day_index:%s", workspace, uid, date)
}

// UserKeyPattern returns the glob matching every key scoped to a user.
// Used for scoped eviction on account sign-out or deletion.
func UserKeyPattern(workspace, uid string) string {
	return fmt.Sprintf("vesper:%s:user:%s:*", workspace, uid)
}

// UserEventsChannel returns the Pub/Sub channel carrying change events for
// one user's documents.
// Pattern: vesper:{workspace}:user:{uid}:events
func UserEventsChannel(workspace, uid string) string {
	return fmt.Sprintf("vesper:%s:user:%s:events", workspace, uid)
}
