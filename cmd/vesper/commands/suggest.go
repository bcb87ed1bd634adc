package commands

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/vesper/internal/format"
	"github.com/dyluth/vesper/internal/mutate"
	"github.com/dyluth/vesper/internal/planner"
	"github.com/dyluth/vesper/internal/printer"
	"github.com/dyluth/vesper/internal/suggest"
	"github.com/dyluth/vesper/pkg/store"
)

var (
	suggestBatch int
	suggestModel string
	suggestDraft bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <free text>",
	Short: "Turn free-form notes into structured backlog items with AI",
	Long: `Turn free-form notes into structured backlog items. The text is sent to
the Anthropic API, which returns title, duration, stamina cost, priority and
activity type; the result lands in your backlog as a candidate (or a draft
with --draft).

Requires ANTHROPIC_API_KEY in the environment.

Examples:
  vesper suggest "sort out car insurance renewal before friday"
  vesper suggest --batch 5 "pack for the trip, book the dog sitter, finish the Q3 deck"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().IntVar(&suggestBatch, "batch", 0, "ask for up to N suggestions instead of one")
	suggestCmd.Flags().StringVar(&suggestModel, "model", "", "override the model name")
	suggestCmd.Flags().BoolVar(&suggestDraft, "draft", false, "add results as drafts without activity metadata")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return printer.Error("Missing API key",
			"The suggest command needs an Anthropic API key.",
			[]string{"Export ANTHROPIC_API_KEY and try again"})
	}

	gen, err := suggest.NewAnthropic(apiKey, suggestModel, 0)
	if err != nil {
		return err
	}

	prompt := strings.Join(args, " ")

	var suggestions []suggest.Suggestion
	if suggestBatch > 0 {
		printer.Step("Generating up to %d suggestions...\n", suggestBatch)
		suggestions, err = gen.SuggestBatch(ctx, prompt, suggestBatch)
	} else {
		printer.Step("Generating suggestion...\n")
		var s *suggest.Suggestion
		s, err = gen.Suggest(ctx, prompt)
		if s != nil {
			suggestions = []suggest.Suggestion{*s}
		}
	}
	if err != nil {
		return err
	}

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, s := range suggestions {
		item, ticket, err := addSuggestion(ctx, session, s)
		if err != nil {
			printer.Warning("Skipped %q: %v\n", s.Title, err)
			continue
		}

		printer.Success("Added %s: %s (%dm, %s)\n",
			item.ID[:8], item.Title, item.DurationMinutes, s.ActivityType)

		settle(ctx, ticket, "suggestion add")
	}

	view, err := session.Backlog(ctx)
	if err == nil {
		format.BacklogTable(os.Stdout, view.Items)
	}
	return nil
}

// addSuggestion lands one suggestion in the backlog. Candidates need a time
// window, which the generator does not produce, so candidates get a
// placeholder window sized to the duration starting at 09:00.
func addSuggestion(ctx context.Context, session *planner.Session, s suggest.Suggestion) (*store.BacklogItem, *mutate.Ticket, error) {
	if suggestDraft {
		return session.AddDraft(ctx, s.Title, s.DurationMinutes, s.Subtasks)
	}

	start := 9 * 60
	end := start + s.DurationMinutes
	if end > 24*60 {
		end = 24 * 60
	}

	return session.AddCandidate(ctx, planner.CandidateInput{
		Title:           s.Title,
		DurationMinutes: s.DurationMinutes,
		Window:          store.TimeWindow{StartMinute: start, EndMinute: end},
		StaminaCost:     s.StaminaCost,
		Priority:        s.Priority,
		ActivityType:    s.ActivityType,
	})
}
