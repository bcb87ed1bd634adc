package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyProfilePatch(t *testing.T) {
	base := &UserProfile{
		UID:         "u1",
		DisplayName: "Ada",
		MaxStamina:  6,
		Onboarding: OnboardingPrefs{
			Chronotype: "early_bird",
			FocusAreas: []string{"health"},
			DayStart:   "07:00",
			DayEnd:     "21:00",
			Completed:  false,
		},
		UpdatedAtMs: 100,
	}

	t.Run("patches a top-level scalar", func(t *testing.T) {
		out, err := ApplyProfilePatch(base, ProfilePatch{"max_stamina": 9})
		require.NoError(t, err)
		assert.Equal(t, 9, out.MaxStamina)

		// Siblings untouched
		assert.Equal(t, "Ada", out.DisplayName)
		assert.Equal(t, "early_bird", out.Onboarding.Chronotype)
	})

	t.Run("patches a nested leaf without disturbing siblings", func(t *testing.T) {
		out, err := ApplyProfilePatch(base, ProfilePatch{"onboarding.day_start": "08:30"})
		require.NoError(t, err)
		assert.Equal(t, "08:30", out.Onboarding.DayStart)
		assert.Equal(t, "21:00", out.Onboarding.DayEnd)
		assert.Equal(t, []string{"health"}, out.Onboarding.FocusAreas)
	})

	t.Run("patches multiple paths at once", func(t *testing.T) {
		out, err := ApplyProfilePatch(base, ProfilePatch{
			"onboarding.completed": true,
			"display_name":         "Ada L.",
		})
		require.NoError(t, err)
		assert.True(t, out.Onboarding.Completed)
		assert.Equal(t, "Ada L.", out.DisplayName)
	})

	t.Run("replaces a list leaf wholesale", func(t *testing.T) {
		out, err := ApplyProfilePatch(base, ProfilePatch{
			"onboarding.focus_areas": []any{"work", "family"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"work", "family"}, out.Onboarding.FocusAreas)
	})

	t.Run("patches a leaf the profile has never set", func(t *testing.T) {
		fresh := &UserProfile{UID: "u1", MaxStamina: 8}

		out, err := ApplyProfilePatch(fresh, ProfilePatch{"onboarding.day_start": "07:30"})
		require.NoError(t, err)
		assert.Equal(t, "07:30", out.Onboarding.DayStart)
		assert.Equal(t, 8, out.MaxStamina)
	})

	t.Run("patches every onboarding leaf on an empty profile", func(t *testing.T) {
		fresh := &UserProfile{UID: "u1"}

		out, err := ApplyProfilePatch(fresh, ProfilePatch{
			"onboarding.chronotype":  "night_owl",
			"onboarding.focus_areas": []any{"health"},
			"onboarding.day_start":   "09:00",
			"onboarding.day_end":     "22:00",
			"onboarding.completed":   true,
		})
		require.NoError(t, err)
		assert.Equal(t, "night_owl", out.Onboarding.Chronotype)
		assert.Equal(t, []string{"health"}, out.Onboarding.FocusAreas)
		assert.Equal(t, "09:00", out.Onboarding.DayStart)
		assert.Equal(t, "22:00", out.Onboarding.DayEnd)
		assert.True(t, out.Onboarding.Completed)
	})

	t.Run("does not mutate the base profile", func(t *testing.T) {
		_, err := ApplyProfilePatch(base, ProfilePatch{"max_stamina": 10})
		require.NoError(t, err)
		assert.Equal(t, 6, base.MaxStamina)
	})

	t.Run("rejects unknown paths", func(t *testing.T) {
		_, err := ApplyProfilePatch(base, ProfilePatch{"stamina": 9})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown patch path")
	})

	t.Run("rejects paths through scalar fields", func(t *testing.T) {
		_, err := ApplyProfilePatch(base, ProfilePatch{"max_stamina.limit": 9})
		assert.Error(t, err)
	})

	t.Run("rejects values that break the schema", func(t *testing.T) {
		_, err := ApplyProfilePatch(base, ProfilePatch{"max_stamina": "lots"})
		assert.Error(t, err)
	})
}

func TestItemHashRoundTrip(t *testing.T) {
	t.Run("draft keeps optional fields empty", func(t *testing.T) {
		item := &BacklogItem{
			ID:              "5a8f6e1c-1111-4222-8333-444455556666",
			Kind:            KindDraft,
			Title:           "Sort photos",
			DurationMinutes: 30,
			Subtasks:        []Subtask{{Title: "pick album", Done: true}},
			CreatedAtMs:     10,
			UpdatedAtMs:     20,
		}

		hash, err := ItemToHash(item)
		require.NoError(t, err)
		assert.NotContains(t, hash, "window")

		got, err := HashToItem(stringify(hash))
		require.NoError(t, err)
		assert.Equal(t, item, got)
		assert.Nil(t, got.Window)
	})

	t.Run("candidate keeps its window", func(t *testing.T) {
		item := &BacklogItem{
			ID:              "5a8f6e1c-1111-4222-8333-444455556666",
			Kind:            KindCandidate,
			Title:           "Quarterly review",
			DurationMinutes: 120,
			Window:          &TimeWindow{StartMinute: 600, EndMinute: 720},
			StaminaCost:     7,
			Priority:        PriorityUrgent,
			ActivityType:    ActivityDeepWork,
			CreatedAtMs:     10,
			UpdatedAtMs:     20,
		}

		hash, err := ItemToHash(item)
		require.NoError(t, err)

		got, err := HashToItem(stringify(hash))
		require.NoError(t, err)
		assert.Equal(t, item, got)
	})
}

// stringify mimics what HGetAll returns: every hash value as a string.
func stringify(hash map[string]interface{}) map[string]string {
	out := make(map[string]string, len(hash))
	for k, v := range hash {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
