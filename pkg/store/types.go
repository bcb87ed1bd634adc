// Package store provides type-safe Go definitions and the Redis schema for
// Vesper's remote document store. The store is the authoritative copy of all
// planner data; clients mirror it into a local query cache and write back
// through optimistic mutations.
//
// All Redis keys and channels are namespaced by workspace name to enable
// multiple Vesper deployments to safely coexist on a single Redis server.
package store

import (
	"fmt"

	"github.com/google/uuid"
)

// UserProfile is the single per-user document. Partial updates are expressed
// as a path-addressed ProfilePatch and merged client-side before the full
// document is written back.
type UserProfile struct {
	UID         string          `json:"uid"`           // User identifier (scopes every other document)
	DisplayName string          `json:"display_name"`  // Free-form display name
	MaxStamina  int             `json:"max_stamina"`   // Daily stamina budget the scheduler plans against
	Onboarding  OnboardingPrefs `json:"onboarding"`    // Nested onboarding preferences
	UpdatedAtMs int64           `json:"updated_at_ms"` // Unix milliseconds of last write (last-write-wins)
}

// OnboardingPrefs holds the preferences collected during onboarding.
// Fields are patched individually via dotted paths (e.g. "onboarding.day_start").
type OnboardingPrefs struct {
	Chronotype string   `json:"chronotype,omitempty"`  // "early_bird", "night_owl" or empty
	FocusAreas []string `json:"focus_areas,omitempty"` // Free-form focus tags
	DayStart   string   `json:"day_start,omitempty"`   // HH:MM wall clock
	DayEnd     string   `json:"day_end,omitempty"`     // HH:MM wall clock
	Completed  bool     `json:"completed"`             // Whether onboarding finished
}

// ProfilePatch is a path-addressed partial update of a UserProfile.
// Keys are dotted field paths using the JSON field names ("max_stamina",
// "onboarding.day_start"); values replace only the addressed leaf, sibling
// fields are preserved.
type ProfilePatch map[string]any

// ItemKind is the discriminant of the BacklogItem tagged union.
type ItemKind string

const (
	// KindDraft is a free-form backlog entry: title, duration and subtasks only.
	KindDraft ItemKind = "draft"

	// KindCandidate is a backlog entry carrying full activity metadata,
	// ready to be placed on a day schedule.
	KindCandidate ItemKind = "candidate"
)

// BacklogItem is a tagged union of a free-form draft and a scheduled
// candidate. Kind selects the variant; Validate enforces the per-variant
// field rules. Items are ordered by UpdatedAtMs descending.
type BacklogItem struct {
	ID              string       `json:"id"`   // UUID, client-generated
	Kind            ItemKind     `json:"kind"` // Union discriminant
	Title           string       `json:"title"`
	DurationMinutes int          `json:"duration_minutes"`
	Done            bool         `json:"done"`

	// Draft-only fields
	Subtasks []Subtask `json:"subtasks,omitempty"`

	// Candidate-only fields
	Window       *TimeWindow  `json:"window,omitempty"`
	StaminaCost  int          `json:"stamina_cost,omitempty"`
	Priority     Priority     `json:"priority,omitempty"`
	ActivityType ActivityType `json:"activity_type,omitempty"`

	CreatedAtMs int64 `json:"created_at_ms"`
	UpdatedAtMs int64 `json:"updated_at_ms"`
}

// ScheduledActivity is a planned block on a single (user, date) day schedule.
// Activities are ordered by window start ascending within a day.
type ScheduledActivity struct {
	ID              string       `json:"id"`   // UUID, client-generated
	Date            string       `json:"date"` // YYYY-MM-DD, the owning day scope
	Title           string       `json:"title"`
	Window          TimeWindow   `json:"window"`
	DurationMinutes int          `json:"duration_minutes"`
	StaminaCost     int          `json:"stamina_cost"`
	Priority        Priority     `json:"priority"`
	ActivityType    ActivityType `json:"activity_type"`
	Done            bool         `json:"done"`
	Subtasks        []Subtask    `json:"subtasks,omitempty"` // Ordered, each with its own Done flag
	CreatedAtMs     int64        `json:"created_at_ms"`
	UpdatedAtMs     int64        `json:"updated_at_ms"`
}

// Subtask is a single checklist entry within a draft or activity.
type Subtask struct {
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// TimeWindow is a start/end pair in minutes since midnight.
type TimeWindow struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Priority orders competing activities when planning a day.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ActivityType is the user-visible category of an activity.
type ActivityType string

const (
	ActivityDeepWork ActivityType = "deep_work"
	ActivityErrand   ActivityType = "errand"
	ActivityExercise ActivityType = "exercise"
	ActivitySocial   ActivityType = "social"
	ActivityRest     ActivityType = "rest"
	ActivityAdmin    ActivityType = "admin"
)

// Validate checks if the UserProfile has valid field values.
func (p *UserProfile) Validate() error {
	if p.UID == "" {
		return fmt.Errorf("profile uid cannot be empty")
	}

	if p.MaxStamina < 0 {
		return fmt.Errorf("max_stamina cannot be negative, got %d", p.MaxStamina)
	}

	return nil
}

// Validate checks if the BacklogItem has valid field values.
// The variant rules are enforced here: drafts must not carry activity
// metadata, candidates must carry all of it.
func (b *BacklogItem) Validate() error {
	if !isValidUUID(b.ID) {
		return fmt.Errorf("invalid backlog item ID: not a valid UUID")
	}

	if b.Title == "" {
		return fmt.Errorf("backlog item title cannot be empty")
	}

	if b.DurationMinutes < 0 {
		return fmt.Errorf("duration cannot be negative, got %d", b.DurationMinutes)
	}

	switch b.Kind {
	case KindDraft:
		if b.Window != nil {
			return fmt.Errorf("draft cannot carry a time window")
		}
		if b.Priority != "" || b.ActivityType != "" {
			return fmt.Errorf("draft cannot carry activity metadata")
		}
	case KindCandidate:
		if b.Window == nil {
			return fmt.Errorf("candidate requires a time window")
		}
		if err := b.Window.Validate(); err != nil {
			return fmt.Errorf("invalid candidate window: %w", err)
		}
		if err := b.Priority.Validate(); err != nil {
			return fmt.Errorf("invalid candidate priority: %w", err)
		}
		if err := b.ActivityType.Validate(); err != nil {
			return fmt.Errorf("invalid candidate activity type: %w", err)
		}
		if b.StaminaCost < 0 {
			return fmt.Errorf("stamina cost cannot be negative, got %d", b.StaminaCost)
		}
	default:
		return fmt.Errorf("unknown backlog item kind: %q", b.Kind)
	}

	return nil
}

// Validate checks if the ScheduledActivity has valid field values.
func (a *ScheduledActivity) Validate() error {
	if !isValidUUID(a.ID) {
		return fmt.Errorf("invalid activity ID: not a valid UUID")
	}

	if !isValidDate(a.Date) {
		return fmt.Errorf("invalid activity date: %q (expected YYYY-MM-DD)", a.Date)
	}

	if a.Title == "" {
		return fmt.Errorf("activity title cannot be empty")
	}

	if err := a.Window.Validate(); err != nil {
		return fmt.Errorf("invalid activity window: %w", err)
	}

	if err := a.Priority.Validate(); err != nil {
		return fmt.Errorf("invalid activity priority: %w", err)
	}

	if err := a.ActivityType.Validate(); err != nil {
		return fmt.Errorf("invalid activity type: %w", err)
	}

	if a.DurationMinutes < 0 {
		return fmt.Errorf("duration cannot be negative, got %d", a.DurationMinutes)
	}

	if a.StaminaCost < 0 {
		return fmt.Errorf("stamina cost cannot be negative, got %d", a.StaminaCost)
	}

	return nil
}

// Validate checks if the TimeWindow is a well-formed intra-day range.
func (w TimeWindow) Validate() error {
	if w.StartMinute < 0 || w.StartMinute >= 24*60 {
		return fmt.Errorf("window start out of range: %d", w.StartMinute)
	}
	if w.EndMinute <= w.StartMinute || w.EndMinute > 24*60 {
		return fmt.Errorf("window end must be after start and within the day, got %d-%d", w.StartMinute, w.EndMinute)
	}
	return nil
}

// Validate checks if the Priority is a valid enum value.
func (p Priority) Validate() error {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return nil
	default:
		return fmt.Errorf("unknown priority: %q", p)
	}
}

// Validate checks if the ActivityType is a valid enum value.
func (t ActivityType) Validate() error {
	switch t {
	case ActivityDeepWork, ActivityErrand, ActivityExercise,
		ActivitySocial, ActivityRest, ActivityAdmin:
		return nil
	default:
		return fmt.Errorf("unknown activity type: %q", t)
	}
}

// Validate checks if the ItemKind is a valid enum value.
func (k ItemKind) Validate() error {
	switch k {
	case KindDraft, KindCandidate:
		return nil
	default:
		return fmt.Errorf("unknown backlog item kind: %q", k)
	}
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// isValidDate checks for the YYYY-MM-DD shape without pulling in time parsing
// everywhere; full calendar validation happens at the CLI parsing layer.
func isValidDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
