package store

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores documents as string-to-string maps (hashes). Complex fields
// (subtask lists, windows, nested preferences) are JSON-encoded into single
// hash fields. Scalar fields stay as individual hash fields so they remain
// inspectable with plain redis-cli.

// ProfileToHash converts a UserProfile to Redis hash format.
func ProfileToHash(p *UserProfile) (map[string]interface{}, error) {
	onboardingJSON, err := json.Marshal(p.Onboarding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal onboarding prefs: %w", err)
	}

	return map[string]interface{}{
		"uid":           p.UID,
		"display_name":  p.DisplayName,
		"max_stamina":   p.MaxStamina,
		"onboarding":    string(onboardingJSON),
		"updated_at_ms": p.UpdatedAtMs,
	}, nil
}

// HashToProfile converts a Redis hash back to a UserProfile.
func HashToProfile(hash map[string]string) (*UserProfile, error) {
	maxStamina, err := strconv.Atoi(hash["max_stamina"])
	if err != nil {
		return nil, fmt.Errorf("invalid max_stamina field: %w", err)
	}

	var onboarding OnboardingPrefs
	if raw := hash["onboarding"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &onboarding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal onboarding prefs: %w", err)
		}
	}

	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return &UserProfile{
		UID:         hash["uid"],
		DisplayName: hash["display_name"],
		MaxStamina:  maxStamina,
		Onboarding:  onboarding,
		UpdatedAtMs: updatedAtMs,
	}, nil
}

// ItemToHash converts a BacklogItem to Redis hash format.
// The union is stored flat; the kind field selects which optional fields are
// meaningful on the way back out.
func ItemToHash(b *BacklogItem) (map[string]interface{}, error) {
	subtasksJSON, err := json.Marshal(b.Subtasks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subtasks: %w", err)
	}

	hash := map[string]interface{}{
		"id":               b.ID,
		"kind":             string(b.Kind),
		"title":            b.Title,
		"duration_minutes": b.DurationMinutes,
		"done":             strconv.FormatBool(b.Done),
		"subtasks":         string(subtasksJSON),
		"stamina_cost":     b.StaminaCost,
		"priority":         string(b.Priority),
		"activity_type":    string(b.ActivityType),
		"created_at_ms":    b.CreatedAtMs,
		"updated_at_ms":    b.UpdatedAtMs,
	}

	if b.Window != nil {
		windowJSON, err := json.Marshal(b.Window)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal window: %w", err)
		}
		hash["window"] = string(windowJSON)
	}

	return hash, nil
}

// HashToItem converts a Redis hash back to a BacklogItem.
func HashToItem(hash map[string]string) (*BacklogItem, error) {
	duration, err := strconv.Atoi(hash["duration_minutes"])
	if err != nil {
		return nil, fmt.Errorf("invalid duration_minutes field: %w", err)
	}

	done, _ := strconv.ParseBool(hash["done"])
	staminaCost, _ := strconv.Atoi(hash["stamina_cost"])
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	var subtasks []Subtask
	if raw := hash["subtasks"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &subtasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subtasks: %w", err)
		}
	}

	var window *TimeWindow
	if raw := hash["window"]; raw != "" {
		window = &TimeWindow{}
		if err := json.Unmarshal([]byte(raw), window); err != nil {
			return nil, fmt.Errorf("failed to unmarshal window: %w", err)
		}
	}

	return &BacklogItem{
		ID:              hash["id"],
		Kind:            ItemKind(hash["kind"]),
		Title:           hash["title"],
		DurationMinutes: duration,
		Done:            done,
		Subtasks:        subtasks,
		Window:          window,
		StaminaCost:     staminaCost,
		Priority:        Priority(hash["priority"]),
		ActivityType:    ActivityType(hash["activity_type"]),
		CreatedAtMs:     createdAtMs,
		UpdatedAtMs:     updatedAtMs,
	}, nil
}

// ActivityToHash converts a ScheduledActivity to Redis hash format.
func ActivityToHash(a *ScheduledActivity) (map[string]interface{}, error) {
	subtasksJSON, err := json.Marshal(a.Subtasks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subtasks: %w", err)
	}

	windowJSON, err := json.Marshal(a.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal window: %w", err)
	}

	return map[string]interface{}{
		"id":               a.ID,
		"date":             a.Date,
		"title":            a.Title,
		"window":           string(windowJSON),
		"duration_minutes": a.DurationMinutes,
		"stamina_cost":     a.StaminaCost,
		"priority":         string(a.Priority),
		"activity_type":    string(a.ActivityType),
		"done":             strconv.FormatBool(a.Done),
		"subtasks":         string(subtasksJSON),
		"created_at_ms":    a.CreatedAtMs,
		"updated_at_ms":    a.UpdatedAtMs,
	}, nil
}

// HashToActivity converts a Redis hash back to a ScheduledActivity.
func HashToActivity(hash map[string]string) (*ScheduledActivity, error) {
	duration, err := strconv.Atoi(hash["duration_minutes"])
	if err != nil {
		return nil, fmt.Errorf("invalid duration_minutes field: %w", err)
	}

	var window TimeWindow
	if raw := hash["window"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &window); err != nil {
			return nil, fmt.Errorf("failed to unmarshal window: %w", err)
		}
	}

	done, _ := strconv.ParseBool(hash["done"])
	staminaCost, _ := strconv.Atoi(hash["stamina_cost"])
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	var subtasks []Subtask
	if raw := hash["subtasks"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &subtasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subtasks: %w", err)
		}
	}

	return &ScheduledActivity{
		ID:              hash["id"],
		Date:            hash["date"],
		Title:           hash["title"],
		Window:          window,
		DurationMinutes: duration,
		StaminaCost:     staminaCost,
		Priority:        Priority(hash["priority"]),
		ActivityType:    ActivityType(hash["activity_type"]),
		Done:            done,
		Subtasks:        subtasks,
		CreatedAtMs:     createdAtMs,
		UpdatedAtMs:     updatedAtMs,
	}, nil
}

// ApplyProfilePatch merges a path-addressed patch into a profile, returning
// the merged copy. Only the addressed leaves change; sibling fields are
// preserved. Unknown paths are rejected so typos fail loudly instead of
// silently dropping data.
func ApplyProfilePatch(p *UserProfile, patch ProfilePatch) (*UserProfile, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}

	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	for path, value := range patch {
		if err := setPath(tree, path, value); err != nil {
			return nil, err
		}
	}

	merged, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patched profile: %w", err)
	}

	out := &UserProfile{}
	if err := json.Unmarshal(merged, out); err != nil {
		return nil, fmt.Errorf("patched profile does not fit schema: %w", err)
	}

	return out, nil
}

// patchablePaths is the set of leaf paths a ProfilePatch may address. It is
// derived from the schema, not from the document being patched: omitempty
// drops unset leaves from a marshalled profile, and an unset leaf is exactly
// what a first-time patch targets.
var patchablePaths = profileLeafPaths()

// profileLeafPaths marshals a fully populated profile and collects every
// dotted leaf path from the resulting JSON tree, so the whitelist cannot
// drift from the struct tags.
func profileLeafPaths() map[string]bool {
	full := &UserProfile{
		UID:         "uid",
		DisplayName: "name",
		MaxStamina:  1,
		Onboarding: OnboardingPrefs{
			Chronotype: "early_bird",
			FocusAreas: []string{"x"},
			DayStart:   "08:00",
			DayEnd:     "17:00",
			Completed:  true,
		},
		UpdatedAtMs: 1,
	}

	raw, err := json.Marshal(full)
	if err != nil {
		panic(fmt.Sprintf("marshal profile schema: %v", err))
	}

	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		panic(fmt.Sprintf("unmarshal profile schema: %v", err))
	}

	paths := make(map[string]bool)
	collectLeafPaths(paths, "", tree)
	return paths
}

func collectLeafPaths(paths map[string]bool, prefix string, node map[string]any) {
	for field, v := range node {
		path := field
		if prefix != "" {
			path = prefix + "." + field
		}
		if child, ok := v.(map[string]any); ok {
			collectLeafPaths(paths, path, child)
			continue
		}
		paths[path] = true
	}
}

// setPath walks dot-separated segments into nested objects and replaces the
// addressed leaf, creating intermediate objects dropped by omitempty.
func setPath(tree map[string]any, path string, value any) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("empty patch path")
	}
	if !patchablePaths[path] {
		return fmt.Errorf("unknown patch path: %q", path)
	}

	node := tree
	for i, seg := range segs {
		if i == len(segs)-1 {
			node[seg] = value
			return nil
		}

		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}

	return nil
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if i > start {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}
	return segs
}
