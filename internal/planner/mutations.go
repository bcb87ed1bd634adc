package planner

import (
	"context"
	"fmt"

	"github.com/dyluth/vesper/internal/mutate"
	"github.com/dyluth/vesper/pkg/store"
)

// Every mutation below follows the same shape: validate the intent, build
// the post-state entity, then hand the coordinator a Mutation carrying the
// optimistic projector, the remote write and the reconciliation scope. The
// optimistic effect is visible through Session reads as soon as the call
// returns; the Ticket settles in the background.

// CandidateInput carries the activity metadata needed to create a
// scheduled-candidate backlog item or promote a draft into one.
type CandidateInput struct {
	Title           string
	DurationMinutes int
	Window          store.TimeWindow
	StaminaCost     int
	Priority        store.Priority
	ActivityType    store.ActivityType
}

// ActivityInput carries the fields needed to place an activity on a day.
type ActivityInput struct {
	Title           string
	Window          store.TimeWindow
	DurationMinutes int
	StaminaCost     int
	Priority        store.Priority
	ActivityType    store.ActivityType
	Subtasks        []string
}

// PatchProfile applies a path-addressed partial update to the user's
// profile. Only the patched paths change; sibling fields are preserved.
// A user with no profile document yet gets one created from the patch.
func (s *Session) PatchProfile(ctx context.Context, patch store.ProfilePatch) (*store.UserProfile, *mutate.Ticket, error) {
	if len(patch) == 0 {
		return nil, nil, &mutate.ValidationError{Reason: "empty profile patch"}
	}

	base, err := s.currentProfile(ctx)
	if err != nil {
		return nil, nil, err
	}

	next, err := store.ApplyProfilePatch(base, patch)
	if err != nil {
		return nil, nil, &mutate.ValidationError{Reason: err.Error()}
	}
	next.UpdatedAtMs = s.nowMs()

	if err := next.Validate(); err != nil {
		return nil, nil, &mutate.ValidationError{Reason: err.Error()}
	}

	ticket, err := s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       profileKey(s.uid),
		Apply:     setProfile(next),
		Remote:    func(ctx context.Context) error { return s.remote.PutProfile(ctx, next) },
		Reconcile: profileScope(s.uid),
	})
	if err != nil {
		return nil, nil, err
	}

	return next, ticket, nil
}

// AddDraft creates a free-form draft backlog item with a client-generated
// placeholder id.
func (s *Session) AddDraft(ctx context.Context, title string, durationMinutes int, subtaskTitles []string) (*store.BacklogItem, *mutate.Ticket, error) {
	now := s.nowMs()

	subtasks := make([]store.Subtask, 0, len(subtaskTitles))
	for _, t := range subtaskTitles {
		subtasks = append(subtasks, store.Subtask{Title: t})
	}

	item := store.BacklogItem{
		ID:              s.newID(),
		Kind:            store.KindDraft,
		Title:           title,
		DurationMinutes: durationMinutes,
		Subtasks:        subtasks,
		CreatedAtMs:     now,
		UpdatedAtMs:     now,
	}

	return s.putItem(ctx, item)
}

// AddCandidate creates a scheduled-candidate backlog item carrying full
// activity metadata.
func (s *Session) AddCandidate(ctx context.Context, in CandidateInput) (*store.BacklogItem, *mutate.Ticket, error) {
	now := s.nowMs()
	window := in.Window

	item := store.BacklogItem{
		ID:              s.newID(),
		Kind:            store.KindCandidate,
		Title:           in.Title,
		DurationMinutes: in.DurationMinutes,
		Window:          &window,
		StaminaCost:     in.StaminaCost,
		Priority:        in.Priority,
		ActivityType:    in.ActivityType,
		CreatedAtMs:     now,
		UpdatedAtMs:     now,
	}

	return s.putItem(ctx, item)
}

// UpdateItem replaces a backlog item wholesale and bumps its last-update
// timestamp, which moves it to the front of the list once the
// post-settlement refetch lands.
func (s *Session) UpdateItem(ctx context.Context, item store.BacklogItem) (*store.BacklogItem, *mutate.Ticket, error) {
	item.UpdatedAtMs = s.nowMs()

	if err := item.Validate(); err != nil {
		return nil, nil, &mutate.ValidationError{Reason: err.Error()}
	}

	ticket, err := s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       backlogKey(s.uid),
		Apply:     replaceItem(item),
		Remote:    func(ctx context.Context) error { return s.remote.PutBacklogItem(ctx, s.uid, &item) },
		Reconcile: backlogScope(s.uid),
	})
	if err != nil {
		return nil, nil, err
	}

	return &item, ticket, nil
}

// DeleteItem removes a backlog item. Deleting an id that is not present is
// a no-op, not an error - the projector filters nothing out and the remote
// delete is idempotent.
func (s *Session) DeleteItem(ctx context.Context, id string) (*mutate.Ticket, error) {
	if id == "" {
		return nil, &mutate.ValidationError{Reason: "empty backlog item id"}
	}

	return s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       backlogKey(s.uid),
		Apply:     removeItem(id),
		Remote:    func(ctx context.Context) error { return s.remote.DeleteBacklogItem(ctx, s.uid, id) },
		Reconcile: backlogScope(s.uid),
	})
}

// CompleteItem sets a backlog item's completion flag. Only the flag
// changes - the last-update timestamp is left alone so completing an item
// does not shuffle the list, and setting the flag back restores the item
// bit-for-bit.
func (s *Session) CompleteItem(ctx context.Context, id string, done bool) (*mutate.Ticket, error) {
	base, err := s.backlogItem(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *base
	next.Done = done

	ticket, err := s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       backlogKey(s.uid),
		Apply:     replaceItem(next),
		Remote:    func(ctx context.Context) error { return s.remote.PutBacklogItem(ctx, s.uid, &next) },
		Reconcile: backlogScope(s.uid),
	})
	if err != nil {
		return nil, err
	}

	return ticket, nil
}

// PromoteDraft upgrades a draft into a scheduled candidate, attaching the
// activity metadata it was missing. Title and duration from the input
// override the draft's when non-zero; subtasks carry over.
func (s *Session) PromoteDraft(ctx context.Context, id string, in CandidateInput) (*store.BacklogItem, *mutate.Ticket, error) {
	base, err := s.backlogItem(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if base.Kind != store.KindDraft {
		return nil, nil, &mutate.ValidationError{Reason: fmt.Sprintf("backlog item %s is not a draft", id)}
	}

	next := *base
	next.Kind = store.KindCandidate
	window := in.Window
	next.Window = &window
	next.StaminaCost = in.StaminaCost
	next.Priority = in.Priority
	next.ActivityType = in.ActivityType
	if in.Title != "" {
		next.Title = in.Title
	}
	if in.DurationMinutes > 0 {
		next.DurationMinutes = in.DurationMinutes
	}
	next.UpdatedAtMs = s.nowMs()

	if err := next.Validate(); err != nil {
		return nil, nil, &mutate.ValidationError{Reason: err.Error()}
	}

	ticket, err := s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       backlogKey(s.uid),
		Apply:     replaceItem(next),
		Remote:    func(ctx context.Context) error { return s.remote.PutBacklogItem(ctx, s.uid, &next) },
		Reconcile: backlogScope(s.uid),
	})
	if err != nil {
		return nil, nil, err
	}

	return &next, ticket, nil
}

// ScheduleActivity places a new activity on a calendar day with a
// client-generated placeholder id.
func (s *Session) ScheduleActivity(ctx context.Context, date string, in ActivityInput) (*store.ScheduledActivity, *mutate.Ticket, error) {
	now := s.nowMs()

	subtasks := make([]store.Subtask, 0, len(in.Subtasks))
	for _, t := range in.Subtasks {
		subtasks = append(subtasks, store.Subtask{Title: t})
	}

	a := store.ScheduledActivity{
		ID:              s.newID(),
		Date:            date,
		Title:           in.Title,
		Window:          in.Window,
		DurationMinutes: in.DurationMinutes,
		StaminaCost:     in.StaminaCost,
		Priority:        in.Priority,
		ActivityType:    in.ActivityType,
		Subtasks:        subtasks,
		CreatedAtMs:     now,
		UpdatedAtMs:     now,
	}

	if err := a.Validate(); err != nil {
		return nil, nil, &mutate.ValidationError{Reason: err.Error()}
	}

	ticket, err := s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       dayKey(s.uid, date),
		Apply:     appendActivity(a),
		Remote:    func(ctx context.Context) error { return s.remote.PutActivity(ctx, s.uid, &a) },
		Reconcile: dayScopeFor(s.uid, date),
	})
	if err != nil {
		return nil, nil, err
	}

	return &a, ticket, nil
}

// UpdateActivity replaces a scheduled activity wholesale and bumps its
// last-update timestamp.
func (s *Session) UpdateActivity(ctx context.Context, a store.ScheduledActivity) (*store.ScheduledActivity, *mutate.Ticket, error) {
	a.UpdatedAtMs = s.nowMs()

	if err := a.Validate(); err != nil {
		return nil, nil, &mutate.ValidationError{Reason: err.Error()}
	}

	ticket, err := s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       dayKey(s.uid, a.Date),
		Apply:     replaceActivity(a),
		Remote:    func(ctx context.Context) error { return s.remote.PutActivity(ctx, s.uid, &a) },
		Reconcile: dayScopeFor(s.uid, a.Date),
	})
	if err != nil {
		return nil, nil, err
	}

	return &a, ticket, nil
}

// DeleteActivity removes an activity from a day. Missing ids are a no-op.
func (s *Session) DeleteActivity(ctx context.Context, date, id string) (*mutate.Ticket, error) {
	if id == "" {
		return nil, &mutate.ValidationError{Reason: "empty activity id"}
	}

	return s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       dayKey(s.uid, date),
		Apply:     removeActivity(id),
		Remote:    func(ctx context.Context) error { return s.remote.DeleteActivity(ctx, s.uid, date, id) },
		Reconcile: dayScopeFor(s.uid, date),
	})
}

// ToggleDone flips an activity's completion flag. Toggling twice restores
// the activity bit-for-bit.
func (s *Session) ToggleDone(ctx context.Context, date, id string) (*mutate.Ticket, error) {
	base, err := s.activity(ctx, date, id)
	if err != nil {
		return nil, err
	}

	next := toggleDone(*base)

	return s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       dayKey(s.uid, date),
		Apply:     replaceActivity(next),
		Remote:    func(ctx context.Context) error { return s.remote.PutActivity(ctx, s.uid, &next) },
		Reconcile: dayScopeFor(s.uid, date),
	})
}

// ToggleSubtask flips one subtask's completion flag within an activity.
func (s *Session) ToggleSubtask(ctx context.Context, date, id string, index int) (*mutate.Ticket, error) {
	base, err := s.activity(ctx, date, id)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(base.Subtasks) {
		return nil, &mutate.ValidationError{Reason: fmt.Sprintf("subtask index %d out of range", index)}
	}

	next := toggleSubtask(*base, index)

	return s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       dayKey(s.uid, date),
		Apply:     replaceActivity(next),
		Remote:    func(ctx context.Context) error { return s.remote.PutActivity(ctx, s.uid, &next) },
		Reconcile: dayScopeFor(s.uid, date),
	})
}

// putItem is the shared create path for both backlog variants.
func (s *Session) putItem(ctx context.Context, item store.BacklogItem) (*store.BacklogItem, *mutate.Ticket, error) {
	if err := item.Validate(); err != nil {
		return nil, nil, &mutate.ValidationError{Reason: err.Error()}
	}

	ticket, err := s.coord.Dispatch(ctx, mutate.Mutation{
		Key:       backlogKey(s.uid),
		Apply:     prependItem(item),
		Remote:    func(ctx context.Context) error { return s.remote.PutBacklogItem(ctx, s.uid, &item) },
		Reconcile: backlogScope(s.uid),
	})
	if err != nil {
		return nil, nil, err
	}

	return &item, ticket, nil
}

// currentProfile resolves the patch base: the cached profile if present,
// otherwise the remote document, otherwise a fresh profile for this user.
func (s *Session) currentProfile(ctx context.Context) (*store.UserProfile, error) {
	if e, ok := s.cache.Read(profileKey(s.uid)); ok {
		if p := profileValue(e.Value); p != nil {
			return p, nil
		}
	}

	p, err := s.remote.GetProfile(ctx, s.uid)
	if err != nil {
		if store.IsNotFound(err) {
			return &store.UserProfile{UID: s.uid}, nil
		}
		return nil, err
	}

	return p, nil
}

// backlogItem resolves a mutation base from the cached list, falling back
// to a remote read when the list is not mirrored yet.
func (s *Session) backlogItem(ctx context.Context, id string) (*store.BacklogItem, error) {
	if id == "" {
		return nil, &mutate.ValidationError{Reason: "empty backlog item id"}
	}

	if e, ok := s.cache.Read(backlogKey(s.uid)); ok {
		for _, item := range itemsValue(e.Value) {
			if item.ID == id {
				it := item
				return &it, nil
			}
		}
	}

	item, err := s.remote.GetBacklogItem(ctx, s.uid, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, &mutate.ValidationError{Reason: fmt.Sprintf("unknown backlog item: %s", id)}
		}
		return nil, err
	}

	return item, nil
}

// activity resolves a mutation base from the cached day, falling back to a
// remote read.
func (s *Session) activity(ctx context.Context, date, id string) (*store.ScheduledActivity, error) {
	if id == "" {
		return nil, &mutate.ValidationError{Reason: "empty activity id"}
	}

	if e, ok := s.cache.Read(dayKey(s.uid, date)); ok {
		for _, a := range activitiesValue(e.Value) {
			if a.ID == id {
				ac := a
				return &ac, nil
			}
		}
	}

	a, err := s.remote.GetActivity(ctx, s.uid, date, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, &mutate.ValidationError{Reason: fmt.Sprintf("unknown activity: %s", id)}
		}
		return nil, err
	}

	return a, nil
}
