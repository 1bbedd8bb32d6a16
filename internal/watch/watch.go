// Package watch renders a party's live event feed as human-readable lines.
package watch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kesper43/volley/pkg/ledger"
)

// StreamEvents subscribes to one party's event feed and writes one formatted
// line per event until the context is cancelled or the feed closes.
// Subscription errors are rendered as warning lines; the stream keeps going.
func StreamEvents(ctx context.Context, client *ledger.Client, party ledger.Party, w io.Writer) error {
	subscription, err := client.SubscribeEvents(ctx, party)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events for %s: %w", party, err)
	}
	defer subscription.Close()

	fmt.Fprintf(w, "Watching event feed for %s (Ctrl+C to stop)\n", party)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-subscription.Events():
			if !ok {
				return nil
			}
			fmt.Fprintln(w, FormatEvent(event))

		case err, ok := <-subscription.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "⚠️  feed error: %v\n", err)
		}
	}
}

// FormatEvent renders one event as a single line with a wall-clock prefix.
func FormatEvent(event *ledger.Event) string {
	ts := time.UnixMilli(event.AtMs).Format("15:04:05")
	c := &event.Contract

	switch event.Kind {
	case ledger.EventKindCreated:
		return fmt.Sprintf("[%s] 🏓 %s(%d) %s: %s → %s", ts, c.Template.Entity, c.Count, c.ID, c.Sender, c.Receiver)
	case ledger.EventKindArchived:
		return fmt.Sprintf("[%s] 🗄  %s(%d) %s archived", ts, c.Template.Entity, c.Count, c.ID)
	default:
		return fmt.Sprintf("[%s] unknown event kind %q for %s", ts, event.Kind, c.ID)
	}
}
