package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client provides workspace-scoped Redis operations for the Vesper document
// store. All keys and channels are automatically namespaced with the
// workspace name. The client is thread-safe and can be used concurrently
// from multiple goroutines.
//
// Writes are atomic per document (the document hash and its ordering index
// are updated in one pipeline) but not transactional across documents.
type Client struct {
	rdb       *redis.Client
	workspace string
}

// NewClient creates a new store client for the specified workspace.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - workspace: Vesper workspace identifier (must not be empty)
//
// Returns an error if workspace is empty.
func NewClient(redisOpts *redis.Options, workspace string) (*Client, error) {
	if workspace == "" {
		return nil, fmt.Errorf("workspace name cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		workspace: workspace,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Workspace returns the workspace name this client is scoped to.
func (c *Client) Workspace() string {
	return c.workspace
}

// GetProfile retrieves a user's profile document.
// Returns (nil, redis.Nil) if no profile exists yet.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetProfile(ctx context.Context, uid string) (*UserProfile, error) {
	key := ProfileKey(c.workspace, uid)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	profile, err := HashToProfile(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize profile: %w", err)
	}

	return profile, nil
}

// PutProfile writes a user's full profile document and publishes a change
// event. Validates the profile before writing. Partial updates are merged
// client-side (ApplyProfilePatch) before calling PutProfile.
func (c *Client) PutProfile(ctx context.Context, p *UserProfile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	hash, err := ProfileToHash(p)
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}

	key := ProfileKey(c.workspace, p.UID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}

	c.publishChange(ctx, p.UID, ChangeEvent{Scope: ScopeProfile, Op: OpPut, AtMs: p.UpdatedAtMs})
	return nil
}

// GetBacklogItem retrieves a single backlog item.
// Returns (nil, redis.Nil) if the item doesn't exist.
func (c *Client) GetBacklogItem(ctx context.Context, uid, itemID string) (*BacklogItem, error) {
	key := BacklogItemKey(c.workspace, uid, itemID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read backlog item: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	item, err := HashToItem(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize backlog item: %w", err)
	}

	return item, nil
}

// PutBacklogItem writes a backlog item and its index entry in one pipeline,
// then publishes a change event. Validates the item before writing.
// The index score is UpdatedAtMs, so a put reorders the listing.
// Idempotent - writing the same item twice is safe.
func (c *Client) PutBacklogItem(ctx context.Context, uid string, item *BacklogItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid backlog item: %w", err)
	}

	hash, err := ItemToHash(item)
	if err != nil {
		return fmt.Errorf("failed to serialize backlog item: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, BacklogItemKey(c.workspace, uid, item.ID), hash)
	pipe.ZAdd(ctx, BacklogIndexKey(c.workspace, uid), redis.Z{
		Score:  float64(item.UpdatedAtMs),
		Member: item.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write backlog item: %w", err)
	}

	c.publishChange(ctx, uid, ChangeEvent{Scope: ScopeBacklog, ID: item.ID, Op: OpPut, AtMs: item.UpdatedAtMs})
	return nil
}

// DeleteBacklogItem removes a backlog item and its index entry.
// Deleting a missing item is a no-op, not an error.
func (c *Client) DeleteBacklogItem(ctx context.Context, uid, itemID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, BacklogItemKey(c.workspace, uid, itemID))
	pipe.ZRem(ctx, BacklogIndexKey(c.workspace, uid), itemID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete backlog item: %w", err)
	}

	c.publishChange(ctx, uid, ChangeEvent{Scope: ScopeBacklog, ID: itemID, Op: OpDelete})
	return nil
}

// ListBacklog retrieves all backlog items for a user, ordered by last-update
// timestamp descending (most recently touched first).
// Returns an empty slice if the backlog is empty.
func (c *Client) ListBacklog(ctx context.Context, uid string) ([]BacklogItem, error) {
	ids, err := c.rdb.ZRevRange(ctx, BacklogIndexKey(c.workspace, uid), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read backlog index: %w", err)
	}

	items := make([]BacklogItem, 0, len(ids))
	for _, id := range ids {
		item, err := c.GetBacklogItem(ctx, uid, id)
		if err != nil {
			// Index entries can briefly outlive their documents; skip them.
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		items = append(items, *item)
	}

	return items, nil
}

// GetActivity retrieves a scheduled activity from a (user, date) scope.
// Returns (nil, redis.Nil) if the activity doesn't exist.
func (c *Client) GetActivity(ctx context.Context, uid, date, activityID string) (*ScheduledActivity, error) {
	key := ActivityKey(c.workspace, uid, date, activityID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read activity: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	activity, err := HashToActivity(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize activity: %w", err)
	}

	return activity, nil
}

// PutActivity writes a scheduled activity and its day index entry in one
// pipeline, then publishes a change event. Validates the activity before
// writing. The index score is the window start minute, so day listings come
// back in chronological order.
func (c *Client) PutActivity(ctx context.Context, uid string, a *ScheduledActivity) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid activity: %w", err)
	}

	hash, err := ActivityToHash(a)
	if err != nil {
		return fmt.Errorf("failed to serialize activity: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, ActivityKey(c.workspace, uid, a.Date, a.ID), hash)
	pipe.ZAdd(ctx, DayIndexKey(c.workspace, uid, a.Date), redis.Z{
		Score:  float64(a.Window.StartMinute),
		Member: a.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write activity: %w", err)
	}

	c.publishChange(ctx, uid, ChangeEvent{Scope: ScopeDay, Date: a.Date, ID: a.ID, Op: OpPut, AtMs: a.UpdatedAtMs})
	return nil
}

// DeleteActivity removes a scheduled activity and its day index entry.
// Deleting a missing activity is a no-op, not an error.
func (c *Client) DeleteActivity(ctx context.Context, uid, date, activityID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, ActivityKey(c.workspace, uid, date, activityID))
	pipe.ZRem(ctx, DayIndexKey(c.workspace, uid, date), activityID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}

	c.publishChange(ctx, uid, ChangeEvent{Scope: ScopeDay, Date: date, ID: activityID, Op: OpDelete})
	return nil
}

// ListDay retrieves all scheduled activities for a (user, date) scope,
// ordered by window start ascending.
// Returns an empty slice for an empty day.
func (c *Client) ListDay(ctx context.Context, uid, date string) ([]ScheduledActivity, error) {
	ids, err := c.rdb.ZRange(ctx, DayIndexKey(c.workspace, uid, date), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read day index: %w", err)
	}

	activities := make([]ScheduledActivity, 0, len(ids))
	for _, id := range ids {
		a, err := c.GetActivity(ctx, uid, date, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		activities = append(activities, *a)
	}

	return activities, nil
}

// RemoveUser evicts every document scoped to a user (profile, backlog,
// schedules, indexes). Other users' data is untouched. Used on account
// sign-out or deletion.
func (c *Client) RemoveUser(ctx context.Context, uid string) error {
	pattern := UserKeyPattern(c.workspace, uid)

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan user keys: %w", err)
		}

		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete user keys: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// publishChange publishes a change event on the user's event channel.
// Publish failures are deliberately not surfaced: the write itself has
// already succeeded, and subscribers fall back to staleness-driven refetch.
func (c *Client) publishChange(ctx context.Context, uid string, ev ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.rdb.Publish(ctx, UserEventsChannel(c.workspace, uid), payload)
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetProfile, GetBacklogItem or
// GetActivity returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
