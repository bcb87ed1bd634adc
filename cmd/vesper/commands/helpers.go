package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/vesper/internal/config"
	"github.com/dyluth/vesper/internal/mutate"
	"github.com/dyluth/vesper/internal/planner"
	"github.com/dyluth/vesper/internal/printer"
	"github.com/dyluth/vesper/pkg/store"
)

// settleTimeout bounds how long a one-shot command waits for a mutation to
// reconcile with the store before exiting.
const settleTimeout = 10 * time.Second

// openSession loads configuration, connects to the store and builds a
// planner session for the resolved user. Caller must call the returned
// cleanup function.
func openSession(ctx context.Context) (*planner.Session, func(), error) {
	cfg, _, err := config.LoadDefault()
	if err != nil {
		return nil, nil, err
	}

	uid := cfg.User
	if userFlag != "" {
		uid = userFlag
	}
	if uid == "" {
		return nil, nil, fmt.Errorf("no user configured (set 'user' in vesper.yml or pass --user)")
	}

	client, err := store.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Workspace)
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("cannot reach store at %s: %w", cfg.Redis.Addr, err)
	}

	session, err := planner.NewSession(client, uid)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	cleanup := func() {
		session.Close()
		client.Close()
	}

	return session, cleanup, nil
}

// settle waits for a dispatched mutation to reconcile. The optimistic state
// has already been printed by the caller; a failed settlement is reported as
// a revert, matching what a UI would show.
func settle(ctx context.Context, ticket *mutate.Ticket, what string) {
	waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	if err := ticket.Wait(waitCtx); err != nil {
		printer.Reverted(what, err)
	}
}
