package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/vesper/internal/config"
	"github.com/dyluth/vesper/internal/printer"
	"github.com/dyluth/vesper/pkg/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream change events for your data in real time",
	Long: `Stream change events for your data in real time. Every write from any
device - profile patches, backlog edits, schedule changes - shows up as a
line here the moment it lands in the store. Press Ctrl-C to stop.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, _, err := config.LoadDefault()
	if err != nil {
		return err
	}

	uid := cfg.User
	if userFlag != "" {
		uid = userFlag
	}
	if uid == "" {
		return fmt.Errorf("no user configured (set 'user' in vesper.yml or pass --user)")
	}

	client, err := store.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Workspace)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("cannot reach store at %s: %w", cfg.Redis.Addr, err)
	}

	sub, err := client.SubscribeChanges(ctx, uid)
	if err != nil {
		return err
	}
	defer sub.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	printer.Step("Watching changes for %s (Ctrl-C to stop)\n", uid)

	for {
		select {
		case <-sigCh:
			printer.Info("\nStopped\n")
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("watch error: %v\n", err)

		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printEvent(ev)
		}
	}
}

func printEvent(ev store.ChangeEvent) {
	at := time.UnixMilli(ev.AtMs).Format("15:04:05")

	switch ev.Scope {
	case store.ScopeProfile:
		printer.Info("[%s] profile %s\n", at, ev.Op)
	case store.ScopeBacklog:
		printer.Info("[%s] backlog %s %s\n", at, ev.Op, shortEventID(ev.ID))
	case store.ScopeDay:
		printer.Info("[%s] day %s %s %s\n", at, ev.Date, ev.Op, shortEventID(ev.ID))
	default:
		printer.Info("[%s] %s %s\n", at, ev.Scope, ev.Op)
	}
}

func shortEventID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
