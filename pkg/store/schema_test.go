package store

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPatterns(t *testing.T) {
	assert.Equal(t, "vesper:prod:user:u1:profile", ProfileKey("prod", "u1"))
	assert.Equal(t, "vesper:prod:user:u1:backlog:abc", BacklogItemKey("prod", "u1", "abc"))
	assert.Equal(t, "vesper:prod:user:u1:backlog_index", BacklogIndexKey("prod", "u1"))
	assert.Equal(t, "vesper:prod:user:u1:day:2026-08-28:abc", ActivityKey("prod", "u1", "2026-08-28", "abc"))
	assert.Equal(t, "vesper:prod:user:u1:day_index:2026-08-28", DayIndexKey("prod", "u1", "2026-08-28"))
	assert.Equal(t, "vesper:prod:user:u1:events", UserEventsChannel("prod", "u1"))
}

func TestUserKeyPatternCoversEveryUserKey(t *testing.T) {
	pattern := UserKeyPattern("prod", "u1")

	keys := []string{
		ProfileKey("prod", "u1"),
		BacklogItemKey("prod", "u1", "abc"),
		BacklogIndexKey("prod", "u1"),
		ActivityKey("prod", "u1", "2026-08-28", "abc"),
		DayIndexKey("prod", "u1", "2026-08-28"),
		UserEventsChannel("prod", "u1"),
	}
	for _, k := range keys {
		ok, err := path.Match(pattern, k)
		assert.NoError(t, err)
		assert.True(t, ok, "pattern %q should match %q", pattern, k)
	}

	t.Run("does not leak across users or workspaces", func(t *testing.T) {
		for _, k := range []string{
			ProfileKey("prod", "u2"),
			ProfileKey("staging", "u1"),
		} {
			ok, _ := path.Match(pattern, k)
			assert.False(t, ok, "pattern %q must not match %q", pattern, k)
		}
	})
}
