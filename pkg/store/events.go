package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ChangeScope identifies which family of documents a change event touched.
type ChangeScope string

const (
	// ScopeProfile marks a change to the user's profile document.
	ScopeProfile ChangeScope = "profile"

	// ScopeBacklog marks a change to a backlog item (and its list ordering).
	ScopeBacklog ChangeScope = "backlog"

	// ScopeDay marks a change to a scheduled activity on one calendar day.
	ScopeDay ChangeScope = "day"
)

// Change operation names carried in ChangeEvent.Op.
const (
	OpPut    = "put"
	OpDelete = "delete"
)

// ChangeEvent describes a single remote write, published on the owning
// user's event channel. Subscribers use events to mark mirrored cache keys
// stale; the event does not carry the document itself, the next read
// refetches authoritative state.
type ChangeEvent struct {
	Scope ChangeScope `json:"scope"`
	Date  string      `json:"date,omitempty"` // Set for ScopeDay events
	ID    string      `json:"id,omitempty"`   // Document ID, empty for profile
	Op    string      `json:"op"`
	AtMs  int64       `json:"at_ms,omitempty"`
}

// Subscription represents an active Pub/Sub subscription to a user's change
// events. Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan ChangeEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of change events.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeChanges subscribes to change events for one user's documents.
// Returns a Subscription delivering ChangeEvent values.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// Redis Pub/Sub is at-most-once: a slow subscriber can miss events, which is
// acceptable because missed events only delay a staleness mark.
func (c *Client) SubscribeChanges(ctx context.Context, uid string) (*Subscription, error) {
	channel := UserEventsChannel(c.workspace, uid)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan ChangeEvent, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal change event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
