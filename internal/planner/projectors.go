package planner

import (
	"github.com/dyluth/vesper/internal/cache"
	"github.com/dyluth/vesper/pkg/store"
)

// Optimistic projectors, one per write shape
//
// Projectors are pure: they never mutate the old value, they build a fresh
// collection and return it. The whole value at the key is replaced with the
// result, so structural merging (replace one element, keep the rest) happens
// here. A nil old value means the collection was never cached; replace and
// remove projectors leave it nil rather than inventing a partial collection,
// create projectors seed the collection with just the new element.

// prependItem inserts a new backlog item at the front - the backlog is
// ordered most-recently-updated first, and a fresh create is by definition
// the newest.
func prependItem(item store.BacklogItem) cache.Projector {
	return func(old any) any {
		items, _ := old.([]store.BacklogItem)
		out := make([]store.BacklogItem, 0, len(items)+1)
		out = append(out, item)
		out = append(out, items...)
		return out
	}
}

// replaceItem swaps the element matching the item's identity, preserving
// position. Reordering, if any, comes from the post-settlement refetch.
func replaceItem(item store.BacklogItem) cache.Projector {
	return func(old any) any {
		items, ok := old.([]store.BacklogItem)
		if !ok {
			return old
		}
		out := make([]store.BacklogItem, len(items))
		copy(out, items)
		for i := range out {
			if out[i].ID == item.ID {
				out[i] = item
			}
		}
		return out
	}
}

// removeItem filters the id out of the collection. A missing id is a no-op,
// not an error.
func removeItem(id string) cache.Projector {
	return func(old any) any {
		items, ok := old.([]store.BacklogItem)
		if !ok {
			return old
		}
		out := make([]store.BacklogItem, 0, len(items))
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out
	}
}

// appendActivity adds a newly scheduled activity to the day's collection.
// The optimistic position is the tail; the authoritative start-time ordering
// is re-established by the refetch after settlement.
func appendActivity(a store.ScheduledActivity) cache.Projector {
	return func(old any) any {
		activities, _ := old.([]store.ScheduledActivity)
		out := make([]store.ScheduledActivity, 0, len(activities)+1)
		out = append(out, activities...)
		out = append(out, a)
		return out
	}
}

// replaceActivity swaps the element matching the activity's identity.
func replaceActivity(a store.ScheduledActivity) cache.Projector {
	return func(old any) any {
		activities, ok := old.([]store.ScheduledActivity)
		if !ok {
			return old
		}
		out := make([]store.ScheduledActivity, len(activities))
		copy(out, activities)
		for i := range out {
			if out[i].ID == a.ID {
				out[i] = a
			}
		}
		return out
	}
}

// removeActivity filters the id out of the day's collection.
func removeActivity(id string) cache.Projector {
	return func(old any) any {
		activities, ok := old.([]store.ScheduledActivity)
		if !ok {
			return old
		}
		out := make([]store.ScheduledActivity, 0, len(activities))
		for _, a := range activities {
			if a.ID != id {
				out = append(out, a)
			}
		}
		return out
	}
}

// setProfile replaces the single-entity profile container outright. The
// patch merge has already happened against the base document.
func setProfile(p *store.UserProfile) cache.Projector {
	return func(old any) any {
		return p
	}
}

// toggleDone returns a copy of the activity with the completion flag
// flipped. Nothing else changes, so toggling twice restores the original
// bit-for-bit.
func toggleDone(a store.ScheduledActivity) store.ScheduledActivity {
	a.Done = !a.Done
	return a
}

// toggleSubtask returns a copy of the activity with one subtask's completion
// flag flipped. The subtask slice is copied; the old activity is untouched.
func toggleSubtask(a store.ScheduledActivity, index int) store.ScheduledActivity {
	subtasks := make([]store.Subtask, len(a.Subtasks))
	copy(subtasks, a.Subtasks)
	subtasks[index].Done = !subtasks[index].Done
	a.Subtasks = subtasks
	return a
}
