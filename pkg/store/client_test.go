package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-workspace")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testCandidate(id string, updatedAtMs int64) *BacklogItem {
	return &BacklogItem{
		ID:              id,
		Kind:            KindCandidate,
		Title:           "Candidate " + id[:8],
		DurationMinutes: 60,
		Window:          &TimeWindow{StartMinute: 9 * 60, EndMinute: 10 * 60},
		StaminaCost:     4,
		Priority:        PriorityNormal,
		ActivityType:    ActivityDeepWork,
		CreatedAtMs:     updatedAtMs,
		UpdatedAtMs:     updatedAtMs,
	}
}

func testActivity(id, date string, startMinute int) *ScheduledActivity {
	return &ScheduledActivity{
		ID:              id,
		Date:            date,
		Title:           "Activity " + id[:8],
		Window:          TimeWindow{StartMinute: startMinute, EndMinute: startMinute + 45},
		DurationMinutes: 45,
		StaminaCost:     3,
		Priority:        PriorityNormal,
		ActivityType:    ActivityErrand,
		CreatedAtMs:     1000,
		UpdatedAtMs:     1000,
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-workspace", client.Workspace())
	})

	t.Run("rejects empty workspace name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "workspace name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	err := client.Ping(ctx)
	assert.NoError(t, err)
}

func TestProfileRoundTrip(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("missing profile returns not found", func(t *testing.T) {
		_, err := client.GetProfile(ctx, "u-nobody")
		assert.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	t.Run("writes and reads a full profile", func(t *testing.T) {
		p := &UserProfile{
			UID:         "u1",
			DisplayName: "Ada",
			MaxStamina:  8,
			Onboarding: OnboardingPrefs{
				Chronotype: "early_bird",
				FocusAreas: []string{"health", "work"},
				DayStart:   "07:00",
				DayEnd:     "22:00",
				Completed:  true,
			},
			UpdatedAtMs: 1234,
		}

		require.NoError(t, client.PutProfile(ctx, p))

		got, err := client.GetProfile(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})

	t.Run("rejects invalid profile", func(t *testing.T) {
		err := client.PutProfile(ctx, &UserProfile{UID: ""})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid profile")
	})
}

func TestBacklogCRUD(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		item := testCandidate(uuid.New().String(), 1000)
		require.NoError(t, client.PutBacklogItem(ctx, "u1", item))

		got, err := client.GetBacklogItem(ctx, "u1", item.ID)
		require.NoError(t, err)
		assert.Equal(t, item, got)
	})

	t.Run("rejects invalid item", func(t *testing.T) {
		item := testCandidate(uuid.New().String(), 1000)
		item.Window = nil

		err := client.PutBacklogItem(ctx, "u1", item)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid backlog item")
	})

	t.Run("delete removes item and index entry", func(t *testing.T) {
		item := testCandidate(uuid.New().String(), 2000)
		require.NoError(t, client.PutBacklogItem(ctx, "u1", item))
		require.NoError(t, client.DeleteBacklogItem(ctx, "u1", item.ID))

		_, err := client.GetBacklogItem(ctx, "u1", item.ID)
		assert.True(t, IsNotFound(err))

		items, err := client.ListBacklog(ctx, "u1")
		require.NoError(t, err)
		for _, it := range items {
			assert.NotEqual(t, item.ID, it.ID)
		}
	})

	t.Run("deleting a missing item is a no-op", func(t *testing.T) {
		err := client.DeleteBacklogItem(ctx, "u1", uuid.New().String())
		assert.NoError(t, err)
	})
}

func TestListBacklogOrdering(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	oldest := testCandidate(uuid.New().String(), 100)
	middle := testCandidate(uuid.New().String(), 200)
	newest := testCandidate(uuid.New().String(), 300)

	require.NoError(t, client.PutBacklogItem(ctx, "u1", middle))
	require.NoError(t, client.PutBacklogItem(ctx, "u1", oldest))
	require.NoError(t, client.PutBacklogItem(ctx, "u1", newest))

	items, err := client.ListBacklog(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Most recently updated first
	assert.Equal(t, newest.ID, items[0].ID)
	assert.Equal(t, middle.ID, items[1].ID)
	assert.Equal(t, oldest.ID, items[2].ID)

	t.Run("rewriting with a newer timestamp reorders", func(t *testing.T) {
		oldest.UpdatedAtMs = 400
		require.NoError(t, client.PutBacklogItem(ctx, "u1", oldest))

		items, err := client.ListBacklog(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, oldest.ID, items[0].ID)
	})
}

func TestActivityCRUD(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	const date = "2026-08-28"

	t.Run("put then get", func(t *testing.T) {
		a := testActivity(uuid.New().String(), date, 9*60)
		require.NoError(t, client.PutActivity(ctx, "u1", a))

		got, err := client.GetActivity(ctx, "u1", date, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a, got)
	})

	t.Run("day listing is chronological", func(t *testing.T) {
		evening := testActivity(uuid.New().String(), "2026-09-01", 19*60)
		morning := testActivity(uuid.New().String(), "2026-09-01", 7*60)
		noon := testActivity(uuid.New().String(), "2026-09-01", 12*60)

		for _, a := range []*ScheduledActivity{evening, morning, noon} {
			require.NoError(t, client.PutActivity(ctx, "u1", a))
		}

		activities, err := client.ListDay(ctx, "u1", "2026-09-01")
		require.NoError(t, err)
		require.Len(t, activities, 3)
		assert.Equal(t, morning.ID, activities[0].ID)
		assert.Equal(t, noon.ID, activities[1].ID)
		assert.Equal(t, evening.ID, activities[2].ID)
	})

	t.Run("days are independent scopes", func(t *testing.T) {
		a := testActivity(uuid.New().String(), "2026-09-02", 8*60)
		require.NoError(t, client.PutActivity(ctx, "u1", a))

		other, err := client.ListDay(ctx, "u1", "2026-09-03")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("deleting a missing activity is a no-op", func(t *testing.T) {
		err := client.DeleteActivity(ctx, "u1", date, uuid.New().String())
		assert.NoError(t, err)
	})
}

func TestRemoveUser(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	// Seed two users with profiles, backlog items and activities
	for _, uid := range []string{"u1", "u2"} {
		require.NoError(t, client.PutProfile(ctx, &UserProfile{UID: uid, MaxStamina: 5, UpdatedAtMs: 1}))
		require.NoError(t, client.PutBacklogItem(ctx, uid, testCandidate(uuid.New().String(), 100)))
		require.NoError(t, client.PutActivity(ctx, uid, testActivity(uuid.New().String(), "2026-08-28", 600)))
	}

	require.NoError(t, client.RemoveUser(ctx, "u1"))

	// u1 is fully evicted
	_, err := client.GetProfile(ctx, "u1")
	assert.True(t, IsNotFound(err))

	items, err := client.ListBacklog(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	activities, err := client.ListDay(ctx, "u1", "2026-08-28")
	require.NoError(t, err)
	assert.Empty(t, activities)

	// u2 is untouched
	_, err = client.GetProfile(ctx, "u2")
	assert.NoError(t, err)

	items, err = client.ListBacklog(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	activities, err = client.ListDay(ctx, "u2", "2026-08-28")
	require.NoError(t, err)
	assert.Len(t, activities, 1)
}

func TestSubscribeChanges(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeChanges(ctx, "u1")
	require.NoError(t, err)
	defer sub.Close()

	// Give the pub/sub goroutine a moment to attach
	time.Sleep(50 * time.Millisecond)

	item := testCandidate(uuid.New().String(), 500)
	require.NoError(t, client.PutBacklogItem(ctx, "u1", item))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, ScopeBacklog, ev.Scope)
		assert.Equal(t, OpPut, ev.Op)
		assert.Equal(t, item.ID, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	t.Run("delete publishes too", func(t *testing.T) {
		require.NoError(t, client.DeleteBacklogItem(ctx, "u1", item.ID))

		select {
		case ev := <-sub.Events():
			assert.Equal(t, ScopeBacklog, ev.Scope)
			assert.Equal(t, OpDelete, ev.Op)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delete event")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		assert.NoError(t, sub.Close())
		assert.NoError(t, sub.Close())
	})
}
