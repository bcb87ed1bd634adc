package planner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/vesper/internal/mutate"
	"github.com/dyluth/vesper/pkg/store"
)

// setupSession builds a session over a miniredis-backed store client, with a
// deterministic clock and id sequence.
func setupSession(t *testing.T, uid string, opts ...Option) (*Session, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := store.NewClient(&redis.Options{Addr: mr.Addr()}, "test-workspace")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	var clock int64
	var seq int
	defaults := []Option{
		WithClock(func() int64 { clock++; return clock * 1000 }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("00000000-0000-4000-8000-%012d", seq)
		}),
	}

	session, err := NewSession(client, uid, append(defaults, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session, mr
}

func settle(t *testing.T, ticket *mutate.Ticket) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return ticket.Wait(ctx)
}

func TestNewSession(t *testing.T) {
	t.Run("rejects missing user", func(t *testing.T) {
		_, err := NewSession(nil, "")
		assert.True(t, mutate.IsValidation(err))
	})

	t.Run("carries the user id", func(t *testing.T) {
		s, _ := setupSession(t, "u1")
		assert.Equal(t, "u1", s.UID())
	})
}

func TestProfileLifecycle(t *testing.T) {
	s, _ := setupSession(t, "u1")
	ctx := context.Background()

	t.Run("no profile document yet", func(t *testing.T) {
		view, err := s.Profile(ctx)
		require.NoError(t, err)
		assert.Nil(t, view.Profile)
		assert.False(t, view.IsLoading)
	})

	t.Run("patch creates the document", func(t *testing.T) {
		p, ticket, err := s.PatchProfile(ctx, store.ProfilePatch{"max_stamina": 8})
		require.NoError(t, err)
		assert.Equal(t, 8, p.MaxStamina)

		// Optimistically visible before settlement
		view, err := s.Profile(ctx)
		require.NoError(t, err)
		require.NotNil(t, view.Profile)
		assert.Equal(t, 8, view.Profile.MaxStamina)

		require.NoError(t, settle(t, ticket))
	})

	t.Run("nested patch preserves siblings", func(t *testing.T) {
		_, ticket, err := s.PatchProfile(ctx, store.ProfilePatch{"onboarding.day_start": "07:30"})
		require.NoError(t, err)
		require.NoError(t, settle(t, ticket))

		_, ticket, err = s.PatchProfile(ctx, store.ProfilePatch{"onboarding.day_end": "22:00"})
		require.NoError(t, err)
		require.NoError(t, settle(t, ticket))

		view, err := s.Profile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "07:30", view.Profile.Onboarding.DayStart)
		assert.Equal(t, "22:00", view.Profile.Onboarding.DayEnd)
		assert.Equal(t, 8, view.Profile.MaxStamina)
	})

	t.Run("rejects empty patch", func(t *testing.T) {
		_, _, err := s.PatchProfile(ctx, store.ProfilePatch{})
		assert.True(t, mutate.IsValidation(err))
	})

	t.Run("rejects unknown paths", func(t *testing.T) {
		_, _, err := s.PatchProfile(ctx, store.ProfilePatch{"maxstamina": 9})
		assert.True(t, mutate.IsValidation(err))
	})
}

func TestBacklogOptimisticAdd(t *testing.T) {
	s, _ := setupSession(t, "u1")
	ctx := context.Background()

	item, ticket, err := s.AddDraft(ctx, "Renew passport", 45, []string{"forms", "photos"})
	require.NoError(t, err)

	// Visible immediately, before the remote write settles
	view, err := s.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, item.ID, view.Items[0].ID)
	assert.Equal(t, store.KindDraft, view.Items[0].Kind)
	assert.Len(t, view.Items[0].Subtasks, 2)

	require.NoError(t, settle(t, ticket))

	// Still there after the post-settlement refetch
	view, err = s.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Renew passport", view.Items[0].Title)
}

func TestBacklogRollbackOnFailure(t *testing.T) {
	var failures []error
	s, mr := setupSession(t, "u1", WithFailureHandler(func(err error) {
		failures = append(failures, err)
	}))
	ctx := context.Background()

	// Seed one settled item so the rollback target is non-empty
	seeded, ticket, err := s.AddDraft(ctx, "Existing", 30, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	before, err := s.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, before.Items, 1)

	// Break the store, then mutate
	mr.SetError("store offline")

	_, ticket, err = s.AddDraft(ctx, "Doomed", 15, nil)
	require.NoError(t, err)

	// Optimistic state shows both items
	view, err := s.Backlog(ctx)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)

	err = settle(t, ticket)
	require.Error(t, err)
	assert.True(t, mutate.IsRemoteWrite(err))

	mr.SetError("")

	// Rolled back to exactly the pre-mutation list
	after, err := s.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)
	assert.Equal(t, seeded.ID, after.Items[0].ID)

	require.Len(t, failures, 1)
}

func TestBacklogReordersAfterUpdate(t *testing.T) {
	s, _ := setupSession(t, "u1")
	ctx := context.Background()

	first, ticket, err := s.AddDraft(ctx, "First", 10, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	second, ticket, err := s.AddDraft(ctx, "Second", 10, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	view, err := s.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, second.ID, view.Items[0].ID)

	// Editing the older item moves it to the front once the refetch lands
	edited := view.Items[1]
	edited.Title = "First, edited"
	_, ticket, err = s.UpdateItem(ctx, edited)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	view, err = s.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, first.ID, view.Items[0].ID)
	assert.Equal(t, "First, edited", view.Items[0].Title)
}

func TestCompleteItemIsIdempotentOnOrder(t *testing.T) {
	s, _ := setupSession(t, "u1")
	ctx := context.Background()

	a, ticket, err := s.AddDraft(ctx, "A", 10, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	b, ticket, err := s.AddDraft(ctx, "B", 10, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	before, err := s.Backlog(ctx)
	require.NoError(t, err)

	// Completing then reopening restores the original state bit for bit:
	// the flag is the only field touched, so ordering cannot shuffle.
	ticket, err = s.CompleteItem(ctx, a.ID, true)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	ticket, err = s.CompleteItem(ctx, a.ID, false)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	after, err := s.Backlog(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, b.ID, after.Items[0].ID)
}

func TestDeleteMissingItemIsNoOp(t *testing.T) {
	s, _ := setupSession(t, "u1")
	ctx := context.Background()

	seeded, ticket, err := s.AddDraft(ctx, "Keep me", 10, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	ticket, err = s.DeleteItem(ctx, "00000000-0000-4000-8000-999999999999")
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	view, err := s.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, seeded.ID, view.Items[0].ID)
}

func TestPromoteDraft(t *testing.T) {
	s, _ := setupSession(t, "u1")
	ctx := context.Background()

	draft, ticket, err := s.AddDraft(ctx, "Prep talk", 60, []string{"outline"})
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	t.Run("attaches activity metadata", func(t *testing.T) {
		promoted, ticket, err := s.PromoteDraft(ctx, draft.ID, CandidateInput{
			Window:       store.TimeWindow{StartMinute: 540, EndMinute: 660},
			StaminaCost:  6,
			Priority:     store.PriorityHigh,
			ActivityType: store.ActivityDeepWork,
		})
		require.NoError(t, err)
		require.NoError(t, settle(t, ticket))

		assert.Equal(t, store.KindCandidate, promoted.Kind)
		assert.Equal(t, "Prep talk", promoted.Title)
		assert.Len(t, promoted.Subtasks, 1)

		view, err := s.Backlog(ctx)
		require.NoError(t, err)
		assert.Equal(t, store.KindCandidate, view.Items[0].Kind)
	})

	t.Run("rejects promoting a candidate", func(t *testing.T) {
		_, _, err := s.PromoteDraft(ctx, draft.ID, CandidateInput{
			Window:       store.TimeWindow{StartMinute: 540, EndMinute: 600},
			Priority:     store.PriorityNormal,
			ActivityType: store.ActivityAdmin,
		})
		assert.True(t, mutate.IsValidation(err))
	})

	t.Run("rejects unknown id", func(t *testing.T) {
		_, _, err := s.PromoteDraft(ctx, "00000000-0000-4000-8000-999999999999", CandidateInput{})
		assert.True(t, mutate.IsValidation(err))
	})
}

func TestDayScheduleLifecycle(t *testing.T) {
	s, _ := setupSession(t, "u1")
	ctx := context.Background()
	const date = "2026-08-28"

	run := ActivityInput{
		Title:        "Morning run",
		Window:       store.TimeWindow{StartMinute: 7 * 60, EndMinute: 7*60 + 45},
		StaminaCost:  4,
		Priority:     store.PriorityNormal,
		ActivityType: store.ActivityExercise,
	}
	standup := ActivityInput{
		Title:        "Standup",
		Window:       store.TimeWindow{StartMinute: 9 * 60, EndMinute: 9*60 + 15},
		StaminaCost:  1,
		Priority:     store.PriorityNormal,
		ActivityType: store.ActivityAdmin,
		Subtasks:     []string{"read board", "update ticket"},
	}

	_, ticket, err := s.ScheduleActivity(ctx, date, standup)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	morning, ticket, err := s.ScheduleActivity(ctx, date, run)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	t.Run("day listing is chronological after refetch", func(t *testing.T) {
		view, err := s.Day(ctx, date)
		require.NoError(t, err)
		require.Len(t, view.Activities, 2)
		assert.Equal(t, "Morning run", view.Activities[0].Title)
		assert.Equal(t, "Standup", view.Activities[1].Title)
	})

	t.Run("toggle twice restores the activity verbatim", func(t *testing.T) {
		before, err := s.Day(ctx, date)
		require.NoError(t, err)

		ticket, err := s.ToggleDone(ctx, date, morning.ID)
		require.NoError(t, err)
		require.NoError(t, settle(t, ticket))

		mid, err := s.Day(ctx, date)
		require.NoError(t, err)
		assert.True(t, mid.Activities[0].Done)

		ticket, err = s.ToggleDone(ctx, date, morning.ID)
		require.NoError(t, err)
		require.NoError(t, settle(t, ticket))

		after, err := s.Day(ctx, date)
		require.NoError(t, err)
		assert.Equal(t, before.Activities, after.Activities)
	})

	t.Run("toggle subtask flips only the addressed entry", func(t *testing.T) {
		view, err := s.Day(ctx, date)
		require.NoError(t, err)
		standupID := view.Activities[1].ID

		ticket, err := s.ToggleSubtask(ctx, date, standupID, 1)
		require.NoError(t, err)
		require.NoError(t, settle(t, ticket))

		view, err = s.Day(ctx, date)
		require.NoError(t, err)
		subs := view.Activities[1].Subtasks
		assert.False(t, subs[0].Done)
		assert.True(t, subs[1].Done)
	})

	t.Run("rejects out-of-range subtask index", func(t *testing.T) {
		view, err := s.Day(ctx, date)
		require.NoError(t, err)

		_, err = s.ToggleSubtask(ctx, date, view.Activities[1].ID, 5)
		assert.True(t, mutate.IsValidation(err))
	})

	t.Run("delete removes from the day", func(t *testing.T) {
		ticket, err := s.DeleteActivity(ctx, date, morning.ID)
		require.NoError(t, err)
		require.NoError(t, settle(t, ticket))

		view, err := s.Day(ctx, date)
		require.NoError(t, err)
		require.Len(t, view.Activities, 1)
		assert.Equal(t, "Standup", view.Activities[0].Title)
	})

	t.Run("other days are unaffected", func(t *testing.T) {
		view, err := s.Day(ctx, "2026-08-29")
		require.NoError(t, err)
		assert.Empty(t, view.Activities)
	})
}

func TestInterleavedMutationsNeverRegress(t *testing.T) {
	s, mr := setupSession(t, "u1")
	ctx := context.Background()

	seeded, ticket, err := s.AddDraft(ctx, "Settled", 10, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	// First mutation will fail remotely; second interleaves on the same key
	// before the first settles.
	mr.SetError("store offline")

	_, ticketA, err := s.AddDraft(ctx, "Doomed", 10, nil)
	require.NoError(t, err)

	_, ticketB, err := s.AddDraft(ctx, "Also doomed", 10, nil)
	require.NoError(t, err)

	require.Error(t, settle(t, ticketA))
	require.Error(t, settle(t, ticketB))

	mr.SetError("")

	// Neither failure may roll the list back past the other's write; the
	// refetch re-derives the settled truth.
	view, err := s.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, seeded.ID, view.Items[0].ID)
}

func TestCloseEvictsOnlyThisUser(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := store.NewClient(&redis.Options{Addr: mr.Addr()}, "test-workspace")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	s1, err := NewSession(client, "u1")
	require.NoError(t, err)
	s2, err := NewSession(client, "u2")
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })

	ctx := context.Background()

	_, ticket, err := s1.AddDraft(ctx, "Mine", 10, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	_, ticket, err = s2.AddDraft(ctx, "Theirs", 10, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	require.NoError(t, s1.Close())

	// u2's session still reads its own data; u1's documents are still in
	// the store (sign-out evicts the mirror, not the remote documents).
	view, err := s2.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Theirs", view.Items[0].Title)

	remote, err := client.ListBacklog(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, remote, 1)
}

func TestWatchMarksKeysStale(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := store.NewClient(&redis.Options{Addr: mr.Addr()}, "test-workspace")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	s, err := NewSession(client, "u1")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()

	_, ticket, err := s.AddDraft(ctx, "Local", 10, nil)
	require.NoError(t, err)
	require.NoError(t, settle(t, ticket))

	require.NoError(t, s.StartWatch(ctx))
	time.Sleep(50 * time.Millisecond)

	// A write from "another device" lands directly in the store
	other := &store.BacklogItem{
		ID:              "11111111-2222-4333-8444-555566667777",
		Kind:            store.KindDraft,
		Title:           "From my phone",
		DurationMinutes: 20,
		CreatedAtMs:     9000,
		UpdatedAtMs:     9000,
	}
	require.NoError(t, client.PutBacklogItem(ctx, "u1", other))

	// The change event invalidates the backlog key; the next read refetches
	assert.Eventually(t, func() bool {
		view, err := s.Backlog(ctx)
		return err == nil && len(view.Items) == 2
	}, 2*time.Second, 20*time.Millisecond)
}
