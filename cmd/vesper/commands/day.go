package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/vesper/internal/dayspec"
	"github.com/dyluth/vesper/internal/format"
	"github.com/dyluth/vesper/internal/planner"
	"github.com/dyluth/vesper/internal/printer"
	"github.com/dyluth/vesper/internal/resolver"
	"github.com/dyluth/vesper/pkg/store"
)

var (
	dayJSON     bool
	dayWindow   string
	dayDuration string
	daySubtasks []string
	dayStamina  int
	dayPriority string
	dayType     string
)

var dayCmd = &cobra.Command{
	Use:   "day <when>",
	Short: "Show or edit one calendar day's schedule",
	Long: `Show or edit one calendar day's schedule. <when> accepts a literal date
(2026-08-28), today/tomorrow/yesterday, or natural language like "next friday".

Examples:
  vesper day today
  vesper day add tomorrow "Morning run" --window 07:00-07:45 --type exercise
  vesper day done 2026-09-01 4f3a
  vesper day subtask today 4f3a 1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDayShow,
}

var dayAddCmd = &cobra.Command{
	Use:   "add <when> <title>",
	Short: "Schedule an activity on a day",
	Args:  cobra.ExactArgs(2),
	RunE:  runDayAdd,
}

var dayDoneCmd = &cobra.Command{
	Use:   "done <when> <id>",
	Short: "Toggle an activity's completion flag",
	Args:  cobra.ExactArgs(2),
	RunE:  runDayDone,
}

var dayRmCmd = &cobra.Command{
	Use:   "rm <when> <id>",
	Short: "Remove an activity from a day",
	Args:  cobra.ExactArgs(2),
	RunE:  runDayRm,
}

var daySubtaskCmd = &cobra.Command{
	Use:   "subtask <when> <id> <index>",
	Short: "Toggle one subtask within an activity",
	Args:  cobra.ExactArgs(3),
	RunE:  runDaySubtask,
}

func init() {
	dayCmd.Flags().BoolVar(&dayJSON, "json", false, "Output in JSON format")

	dayAddCmd.Flags().StringVar(&dayWindow, "window", "", "time window (HH:MM-HH:MM)")
	dayAddCmd.Flags().StringVar(&dayDuration, "duration", "", "duration (defaults to the window length)")
	dayAddCmd.Flags().StringArrayVar(&daySubtasks, "subtask", nil, "subtask title (repeatable)")
	dayAddCmd.Flags().IntVar(&dayStamina, "stamina", 3, "stamina cost (1-10)")
	dayAddCmd.Flags().StringVar(&dayPriority, "priority", string(store.PriorityNormal), "priority (low|normal|high|urgent)")
	dayAddCmd.Flags().StringVar(&dayType, "type", string(store.ActivityAdmin), "activity type")

	dayCmd.AddCommand(dayAddCmd)
	dayCmd.AddCommand(dayDoneCmd)
	dayCmd.AddCommand(dayRmCmd)
	dayCmd.AddCommand(daySubtaskCmd)
	rootCmd.AddCommand(dayCmd)
}

func runDayShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	date, err := dayspec.ParseDay(args[0], time.Now())
	if err != nil {
		return err
	}

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	view, err := session.Day(ctx, date)
	if err != nil {
		return err
	}

	if dayJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view.Activities)
	}

	format.DayTable(os.Stdout, date, view.Activities)
	return nil
}

func runDayAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	date, err := dayspec.ParseDay(args[0], time.Now())
	if err != nil {
		return err
	}

	if dayWindow == "" {
		return printer.Error("Missing time window",
			"Scheduling an activity requires a time window.",
			[]string{"Pass --window HH:MM-HH:MM, e.g. --window 09:00-10:30"})
	}

	window, err := dayspec.ParseWindow(dayWindow)
	if err != nil {
		return err
	}

	minutes := window.EndMinute - window.StartMinute
	if dayDuration != "" {
		minutes, err = dayspec.ParseDurationMinutes(dayDuration)
		if err != nil {
			return err
		}
	}

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	a, ticket, err := session.ScheduleActivity(ctx, date, planner.ActivityInput{
		Title:           args[1],
		Window:          window,
		DurationMinutes: minutes,
		StaminaCost:     dayStamina,
		Priority:        store.Priority(dayPriority),
		ActivityType:    store.ActivityType(dayType),
		Subtasks:        daySubtasks,
	})
	if err != nil {
		return err
	}

	printer.Success("Scheduled %s on %s at %s\n", a.ID[:8], date, dayspec.FormatWindow(a.Window))

	settle(ctx, ticket, "day schedule")
	return nil
}

func runDayDone(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	date, err := dayspec.ParseDay(args[0], time.Now())
	if err != nil {
		return err
	}

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveActivityID(ctx, session, date, args[1])
	if err != nil {
		return err
	}

	ticket, err := session.ToggleDone(ctx, date, id)
	if err != nil {
		return err
	}

	printer.Success("Toggled %s\n", id[:8])

	settle(ctx, ticket, "activity toggle")
	return nil
}

func runDayRm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	date, err := dayspec.ParseDay(args[0], time.Now())
	if err != nil {
		return err
	}

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveActivityID(ctx, session, date, args[1])
	if err != nil {
		if resolver.IsNotFound(err) {
			printer.Info("Nothing to remove\n")
			return nil
		}
		return err
	}

	ticket, err := session.DeleteActivity(ctx, date, id)
	if err != nil {
		return err
	}

	printer.Success("Removed %s from %s\n", id[:8], date)

	settle(ctx, ticket, "activity removal")
	return nil
}

func runDaySubtask(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	date, err := dayspec.ParseDay(args[0], time.Now())
	if err != nil {
		return err
	}

	var index int
	if _, err := fmt.Sscanf(args[2], "%d", &index); err != nil {
		return fmt.Errorf("invalid subtask index %q", args[2])
	}

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveActivityID(ctx, session, date, args[1])
	if err != nil {
		return err
	}

	ticket, err := session.ToggleSubtask(ctx, date, id, index)
	if err != nil {
		return err
	}

	printer.Success("Toggled subtask %d of %s\n", index, id[:8])

	settle(ctx, ticket, "subtask toggle")
	return nil
}

// resolveActivityID expands a short id prefix against one day's schedule.
func resolveActivityID(ctx context.Context, session *planner.Session, date, shortID string) (string, error) {
	view, err := session.Day(ctx, date)
	if err != nil {
		return "", err
	}

	ids := make([]string, 0, len(view.Activities))
	for _, a := range view.Activities {
		ids = append(ids, a.ID)
	}

	id, err := resolver.Resolve(ids, shortID)
	if err != nil {
		if resolver.IsAmbiguous(err) {
			return "", fmt.Errorf("%s", resolver.FormatAmbiguousError(err.(*resolver.AmbiguousError)))
		}
		return "", err
	}

	return id, nil
}
