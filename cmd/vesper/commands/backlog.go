package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/vesper/internal/dayspec"
	"github.com/dyluth/vesper/internal/format"
	"github.com/dyluth/vesper/internal/planner"
	"github.com/dyluth/vesper/internal/printer"
	"github.com/dyluth/vesper/internal/resolver"
	"github.com/dyluth/vesper/pkg/store"
)

var (
	backlogJSON     bool
	backlogDuration string
	backlogSubtasks []string
	backlogWindow   string
	backlogStamina  int
	backlogPriority string
	backlogType     string
	backlogReopen   bool
)

var backlogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Manage the backlog of drafts and scheduling candidates",
}

var backlogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backlog items, most recently updated first",
	RunE:  runBacklogList,
}

var backlogAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a draft to the backlog",
	Long: `Add a draft to the backlog. A draft carries only a title, an optional
duration and optional subtasks; promote it once it is ready to schedule.

Examples:
  vesper backlog add "Renew passport" --duration 45m
  vesper backlog add "Prep talk" --duration 2h --subtask outline --subtask slides`,
	Args: cobra.ExactArgs(1),
	RunE: runBacklogAdd,
}

var backlogDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a backlog item complete (or reopen it with --reopen)",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacklogDone,
}

var backlogRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a backlog item",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacklogRm,
}

var backlogPromoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Promote a draft into a scheduling candidate",
	Long: `Promote a draft into a scheduling candidate by attaching the activity
metadata the planner needs: a preferred time window, stamina cost, priority
and activity type.

Example:
  vesper backlog promote 4f3a --window 09:00-11:00 --stamina 6 --priority high --type deep_work`,
	Args: cobra.ExactArgs(1),
	RunE: runBacklogPromote,
}

func init() {
	backlogListCmd.Flags().BoolVar(&backlogJSON, "json", false, "Output in JSON format")

	backlogAddCmd.Flags().StringVar(&backlogDuration, "duration", "30m", "estimated duration (minutes or Go syntax)")
	backlogAddCmd.Flags().StringArrayVar(&backlogSubtasks, "subtask", nil, "subtask title (repeatable)")

	backlogDoneCmd.Flags().BoolVar(&backlogReopen, "reopen", false, "mark the item not-done instead")

	backlogPromoteCmd.Flags().StringVar(&backlogWindow, "window", "", "preferred time window (HH:MM-HH:MM)")
	backlogPromoteCmd.Flags().IntVar(&backlogStamina, "stamina", 3, "stamina cost (1-10)")
	backlogPromoteCmd.Flags().StringVar(&backlogPriority, "priority", string(store.PriorityNormal), "priority (low|normal|high|urgent)")
	backlogPromoteCmd.Flags().StringVar(&backlogType, "type", string(store.ActivityAdmin), "activity type")

	backlogCmd.AddCommand(backlogListCmd)
	backlogCmd.AddCommand(backlogAddCmd)
	backlogCmd.AddCommand(backlogDoneCmd)
	backlogCmd.AddCommand(backlogRmCmd)
	backlogCmd.AddCommand(backlogPromoteCmd)
	rootCmd.AddCommand(backlogCmd)
}

func runBacklogList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	view, err := session.Backlog(ctx)
	if err != nil {
		return err
	}

	if backlogJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view.Items)
	}

	format.BacklogTable(os.Stdout, view.Items)
	return nil
}

func runBacklogAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	minutes, err := dayspec.ParseDurationMinutes(backlogDuration)
	if err != nil {
		return err
	}

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	item, ticket, err := session.AddDraft(ctx, args[0], minutes, backlogSubtasks)
	if err != nil {
		return err
	}

	printer.Success("Added draft %s: %s\n", item.ID[:8], item.Title)

	settle(ctx, ticket, "backlog add")
	return nil
}

func runBacklogDone(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveBacklogID(ctx, session, args[0])
	if err != nil {
		return err
	}

	ticket, err := session.CompleteItem(ctx, id, !backlogReopen)
	if err != nil {
		return err
	}

	if backlogReopen {
		printer.Success("Reopened %s\n", id[:8])
	} else {
		printer.Success("Completed %s\n", id[:8])
	}

	settle(ctx, ticket, "backlog completion")
	return nil
}

func runBacklogRm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveBacklogID(ctx, session, args[0])
	if err != nil {
		// Deleting something already gone is a no-op, not a failure.
		if resolver.IsNotFound(err) {
			printer.Info("Nothing to remove\n")
			return nil
		}
		return err
	}

	ticket, err := session.DeleteItem(ctx, id)
	if err != nil {
		return err
	}

	printer.Success("Removed %s\n", id[:8])

	settle(ctx, ticket, "backlog removal")
	return nil
}

func runBacklogPromote(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if backlogWindow == "" {
		return printer.Error("Missing time window",
			"Promoting a draft requires a preferred time window.",
			[]string{"Pass --window HH:MM-HH:MM, e.g. --window 09:00-11:00"})
	}

	window, err := dayspec.ParseWindow(backlogWindow)
	if err != nil {
		return err
	}

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveBacklogID(ctx, session, args[0])
	if err != nil {
		return err
	}

	item, ticket, err := session.PromoteDraft(ctx, id, planner.CandidateInput{
		Window:       window,
		StaminaCost:  backlogStamina,
		Priority:     store.Priority(backlogPriority),
		ActivityType: store.ActivityType(backlogType),
	})
	if err != nil {
		return err
	}

	printer.Success("Promoted %s to candidate (%s)\n", item.ID[:8], dayspec.FormatWindow(*item.Window))

	settle(ctx, ticket, "backlog promotion")
	return nil
}

// resolveBacklogID expands a short id prefix against the current backlog.
func resolveBacklogID(ctx context.Context, session *planner.Session, shortID string) (string, error) {
	view, err := session.Backlog(ctx)
	if err != nil {
		return "", err
	}

	ids := make([]string, 0, len(view.Items))
	for _, item := range view.Items {
		ids = append(ids, item.ID)
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
