// Package planner exposes the read and mutate operations the UI layer
// consumes: per-entity-family reads returning cached values with staleness
// flags, and fire-and-forget mutations whose optimistic effect is visible
// synchronously through the cache.
//
// A Session owns the query cache, the mutation coordinator and the remote
// store client for one signed-in user. It is created at sign-in and torn
// down at sign-out; tearing it down evicts every cache entry scoped to the
// user and leaves other users' entries untouched.
package planner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/vesper/internal/cache"
	"github.com/dyluth/vesper/internal/mutate"
	"github.com/dyluth/vesper/pkg/store"
)

// ProfileView is the UI-facing read of the profile key.
// Profile is nil while nothing is cached (IsLoading) or when the user has
// no profile document yet.
type ProfileView struct {
	Profile   *store.UserProfile
	IsStale   bool
	IsLoading bool
}

// BacklogView is the UI-facing read of the backlog list key, ordered by
// last-update timestamp descending.
type BacklogView struct {
	Items     []store.BacklogItem
	IsStale   bool
	IsLoading bool
}

// DayView is the UI-facing read of one calendar day's schedule, ordered by
// window start ascending.
type DayView struct {
	Date       string
	Activities []store.ScheduledActivity
	IsStale    bool
	IsLoading  bool
}

// Session binds one signed-in user to a cache store, a mutation coordinator
// and the remote document store.
type Session struct {
	uid    string
	remote *store.Client
	cache  *cache.Store
	coord  *mutate.Coordinator

	nowMs func() int64
	newID func() string

	watch *store.Subscription
}

// Option customizes a Session at construction time.
type Option func(*Session)

// WithClock overrides the timestamp source (tests).
func WithClock(nowMs func() int64) Option {
	return func(s *Session) { s.nowMs = nowMs }
}

// WithIDGenerator overrides client-side id generation (tests).
func WithIDGenerator(newID func() string) Option {
	return func(s *Session) { s.newID = newID }
}

// WithFailureHandler installs a callback invoked after any mutation settles
// with a remote failure, once the cache has been rolled back or invalidated.
// The UI uses it to show the "write failed, reverted" notification.
func WithFailureHandler(fn func(err error)) Option {
	return func(s *Session) {
		s.coord.OnFailure = func(_ mutate.Mutation, err error) { fn(err) }
	}
}

// NewSession creates a session for one signed-in user.
// Returns a ValidationError if uid is empty - every operation requires the
// scoping identifier, so a missing one fails fast here.
func NewSession(remote *store.Client, uid string, opts ...Option) (*Session, error) {
	if uid == "" {
		return nil, &mutate.ValidationError{Reason: "no authenticated user"}
	}

	c := cache.NewStore()
	s := &Session{
		uid:    uid,
		remote: remote,
		cache:  c,
		coord:  mutate.NewCoordinator(c),
		nowMs:  func() int64 { return time.Now().UnixMilli() },
		newID:  func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// UID returns the signed-in user identifier.
func (s *Session) UID() string {
	return s.uid
}

// Close tears the session down: stops the remote watch if one is running
// and evicts every cache entry scoped to this user.
func (s *Session) Close() error {
	if s.watch != nil {
		s.watch.Close()
		s.watch = nil
	}

	s.cache.Remove(profileKey(s.uid))
	s.cache.Remove(backlogKey(s.uid))
	s.cache.Remove(dayScope(s.uid))
	return nil
}

// Profile returns the cached profile, refetching lazily when the entry is
// stale or missing. A user with no profile document yet gets a nil Profile,
// not an error.
func (s *Session) Profile(ctx context.Context) (ProfileView, error) {
	k := profileKey(s.uid)

	e, ok := s.cache.Read(k)
	if ok && !e.Stale {
		return ProfileView{Profile: profileValue(e.Value)}, nil
	}

	if s.cache.RefetchSuspended(k) {
		if ok {
			return ProfileView{Profile: profileValue(e.Value), IsStale: true}, nil
		}
		return ProfileView{IsLoading: true}, nil
	}

	p, err := s.remote.GetProfile(ctx, s.uid)
	if err != nil && !store.IsNotFound(err) {
		if ok {
			return ProfileView{Profile: profileValue(e.Value), IsStale: true}, err
		}
		return ProfileView{IsLoading: true}, err
	}

	s.cache.Write(k, setProfile(p))
	return ProfileView{Profile: p}, nil
}

// Backlog returns the cached backlog list, refetching lazily when the entry
// is stale or missing. The list is ordered most-recently-updated first.
func (s *Session) Backlog(ctx context.Context) (BacklogView, error) {
	k := backlogKey(s.uid)

	e, ok := s.cache.Read(k)
	if ok && !e.Stale {
		return BacklogView{Items: itemsValue(e.Value)}, nil
	}

	if s.cache.RefetchSuspended(k) {
		if ok {
			return BacklogView{Items: itemsValue(e.Value), IsStale: true}, nil
		}
		return BacklogView{IsLoading: true}, nil
	}

	items, err := s.remote.ListBacklog(ctx, s.uid)
	if err != nil {
		if ok {
			return BacklogView{Items: itemsValue(e.Value), IsStale: true}, err
		}
		return BacklogView{IsLoading: true}, err
	}

	s.cache.Write(k, func(any) any { return items })
	return BacklogView{Items: items}, nil
}

// Day returns one calendar day's cached schedule, refetching lazily when
// the entry is stale or missing. Activities are ordered by start time.
func (s *Session) Day(ctx context.Context, date string) (DayView, error) {
	k := dayKey(s.uid, date)

	e, ok := s.cache.Read(k)
	if ok && !e.Stale {
		return DayView{Date: date, Activities: activitiesValue(e.Value)}, nil
	}

	if s.cache.RefetchSuspended(k) {
		if ok {
			return DayView{Date: date, Activities: activitiesValue(e.Value), IsStale: true}, nil
		}
		return DayView{Date: date, IsLoading: true}, nil
	}

	activities, err := s.remote.ListDay(ctx, s.uid, date)
	if err != nil {
		if ok {
			return DayView{Date: date, Activities: activitiesValue(e.Value), IsStale: true}, err
		}
		return DayView{Date: date, IsLoading: true}, err
	}

	s.cache.Write(k, func(any) any { return activities })
	return DayView{Date: date, Activities: activities}, nil
}

// StartWatch subscribes to the user's remote change events and marks the
// affected cache keys stale as they arrive, so writes from other devices
// become visible on the next read. The watch stops when the context is
// cancelled or the session is closed.
func (s *Session) StartWatch(ctx context.Context) error {
	sub, err := s.remote.SubscribeChanges(ctx, s.uid)
	if err != nil {
		return err
	}
	s.watch = sub

	go func() {
		for ev := range sub.Events() {
			s.applyRemoteChange(ev)
		}
	}()

	return nil
}

// applyRemoteChange maps a change event to the narrowest cache key it could
// have affected. Our own writes also arrive here; marking a freshly written
// entry stale costs one redundant refetch and nothing else.
func (s *Session) applyRemoteChange(ev store.ChangeEvent) {
	switch ev.Scope {
	case store.ScopeProfile:
		s.cache.Invalidate(profileKey(s.uid))
	case store.ScopeBacklog:
		s.cache.Invalidate(backlogKey(s.uid))
	case store.ScopeDay:
		if ev.Date != "" {
			s.cache.Invalidate(dayKey(s.uid, ev.Date))
		} else {
			s.cache.Invalidate(dayScope(s.uid))
		}
	}
}

func profileValue(v any) *store.UserProfile {
	p, _ := v.(*store.UserProfile)
	return p
}

func itemsValue(v any) []store.BacklogItem {
	items, _ := v.([]store.BacklogItem)
	return items
}

func activitiesValue(v any) []store.ScheduledActivity {
	activities, _ := v.([]store.ScheduledActivity)
	return activities
}
