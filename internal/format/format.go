// Package format renders backlog and schedule listings for the CLI.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/vesper/internal/dayspec"
	"github.com/dyluth/vesper/pkg/store"
)

// BacklogTable writes backlog items as a formatted table, most recently
// updated first. Returns the number of items written.
func BacklogTable(w io.Writer, items []store.BacklogItem) int {
	if len(items) == 0 {
		fmt.Fprintln(w, "Backlog is empty")
		return 0
	}

	fmt.Fprintf(w, "%-10s %-4s %-10s %-8s %-8s %s\n",
		"ID", "DONE", "KIND", "DUR", "PRIO", "TITLE")
	fmt.Fprintf(w, "%-10s %-4s %-10s %-8s %-8s %s\n",
		"----------", "----", "----------", "--------", "--------", "------------------------------")

	for _, item := range items {
		prio := "-"
		if item.Kind == store.KindCandidate {
			prio = string(item.Priority)
		}

		fmt.Fprintf(w, "%-10s %-4s %-10s %-8s %-8s %s\n",
			shortID(item.ID),
			checkbox(item.Done),
			string(item.Kind),
			duration(item.DurationMinutes),
			prio,
			truncate(item.Title, 60),
		)
	}

	noun := "item"
	if len(items) != 1 {
		noun = "items"
	}
	fmt.Fprintf(w, "\n%d %s\n", len(items), noun)

	return len(items)
}

// DayTable writes one day's schedule as a formatted table in chronological
// order, subtasks indented under their activity.
func DayTable(w io.Writer, date string, activities []store.ScheduledActivity) int {
	if len(activities) == 0 {
		fmt.Fprintf(w, "Nothing scheduled for %s\n", date)
		return 0
	}

	fmt.Fprintf(w, "Schedule for %s:\n\n", date)
	fmt.Fprintf(w, "%-10s %-4s %-12s %-10s %-8s %s\n",
		"ID", "DONE", "WINDOW", "TYPE", "STAMINA", "TITLE")
	fmt.Fprintf(w, "%-10s %-4s %-12s %-10s %-8s %s\n",
		"----------", "----", "------------", "----------", "--------", "------------------------------")

	for _, a := range activities {
		fmt.Fprintf(w, "%-10s %-4s %-12s %-10s %-8d %s\n",
			shortID(a.ID),
			checkbox(a.Done),
			dayspec.FormatWindow(a.Window),
			string(a.ActivityType),
			a.StaminaCost,
			truncate(a.Title, 60),
		)

		for i, st := range a.Subtasks {
			fmt.Fprintf(w, "%-10s   %s [%d] %s\n", "", checkbox(st.Done), i, truncate(st.Title, 50))
		}
	}

	noun := "activity"
	if len(activities) != 1 {
		noun = "activities"
	}
	fmt.Fprintf(w, "\n%d %s\n", len(activities), noun)

	return len(activities)
}

// Profile writes a profile document as key/value lines.
func Profile(w io.Writer, p *store.UserProfile) {
	if p == nil {
		fmt.Fprintln(w, "No profile yet")
		return
	}

	fmt.Fprintf(w, "User:        %s\n", p.UID)
	if p.DisplayName != "" {
		fmt.Fprintf(w, "Name:        %s\n", p.DisplayName)
	}
	fmt.Fprintf(w, "Max stamina: %d\n", p.MaxStamina)

	ob := p.Onboarding
	fmt.Fprintf(w, "Onboarding:  completed=%v\n", ob.Completed)
	if ob.Chronotype != "" {
		fmt.Fprintf(w, "  chronotype:  %s\n", ob.Chronotype)
	}
	if ob.DayStart != "" || ob.DayEnd != "" {
		fmt.Fprintf(w, "  day window:  %s-%s\n", ob.DayStart, ob.DayEnd)
	}
	if len(ob.FocusAreas) > 0 {
		fmt.Fprintf(w, "  focus areas: %s\n", strings.Join(ob.FocusAreas, ", "))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func duration(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	if minutes > 60 {
		return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
