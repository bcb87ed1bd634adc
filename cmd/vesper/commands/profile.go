package commands

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/vesper/internal/format"
	"github.com/dyluth/vesper/internal/printer"
	"github.com/dyluth/vesper/pkg/store"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current profile",
	RunE:  runProfileShow,
}

var profileSetCmd = &cobra.Command{
	Use:   "set <path>=<value> [...]",
	Short: "Patch individual profile fields",
	Long: `Patch individual profile fields by dotted path, leaving the rest of the
document untouched.

Examples:
  vesper profile set max_stamina=8
  vesper profile set onboarding.day_start=08:30 onboarding.day_end=18:00
  vesper profile set onboarding.completed=true`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProfileSet,
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	view, err := session.Profile(ctx)
	if err != nil {
		return err
	}

	format.Profile(os.Stdout, view.Profile)
	return nil
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	patch := store.ProfilePatch{}
	for _, arg := range args {
		path, value, ok := strings.Cut(arg, "=")
		if !ok || path == "" {
			return printer.Error("Invalid patch argument",
				"Patch arguments take the form <path>=<value>.",
				[]string{"Example: vesper profile set max_stamina=8"})
		}
		patch[path] = coerce(value)
	}

	session, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	next, ticket, err := session.PatchProfile(ctx, patch)
	if err != nil {
		return err
	}

	printer.Success("Profile updated\n")
	format.Profile(os.Stdout, next)

	settle(ctx, ticket, "profile update")
	return nil
}

// coerce turns CLI strings into the JSON types the patch merge expects.
func coerce(value string) any {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if strings.Contains(value, ",") {
		parts := strings.Split(value, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	}
	return value
}
