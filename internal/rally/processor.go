package rally

import (
	"context"
	"fmt"
	"log"

	"github.com/kesper43/volley/pkg/ledger"
)

// Processor is the perpetual reactive loop of one party. It subscribes to
// the party's event feed and answers every Ping or Pong directed at the
// party with its complement.
//
// One Processor exists per party. Processors share no mutable state and
// interact only indirectly through the ledger; the ledger client they share
// is safe for concurrent use.
type Processor struct {
	client *ledger.Client
	party  ledger.Party
	appID  string
	module ledger.TemplateID // Entity field unused; identifies package+module
}

// NewProcessor creates a processor for one party. The module template id
// carries the resolved package id and module name; its Entity field is
// ignored (the processor handles both Ping and Pong).
func NewProcessor(client *ledger.Client, party ledger.Party, appID string, module ledger.TemplateID) *Processor {
	return &Processor{
		client: client,
		party:  party,
		appID:  appID,
		module: module,
	}
}

// Run subscribes to the party's event feed and processes events until the
// context is cancelled or the subscription closes. A failed reaction is
// logged and dropped; it never stops the loop.
func (p *Processor) Run(ctx context.Context) error {
	subscription, err := p.client.SubscribeEvents(ctx, p.party)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events for %s: %w", p.party, err)
	}
	defer subscription.Close()

	log.Printf("[Processor:%s] Subscribed to event feed", p.party)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Processor:%s] Shutting down...", p.party)
			return nil

		case event, ok := <-subscription.Events():
			if !ok {
				log.Printf("[Processor:%s] Subscription closed", p.party)
				return nil
			}

			if !p.matches(event) {
				continue
			}

			if err := p.react(ctx, &event.Contract); err != nil {
				log.Printf("[Processor:%s] Error reacting to %s: %v", p.party, event.Contract.ID, err)
				// Continue processing - a single failed reaction does not
				// halt the party's loop.
			}

		case err, ok := <-subscription.Errors():
			if !ok {
				log.Printf("[Processor:%s] Error channel closed", p.party)
				return nil
			}
			log.Printf("[Processor:%s] Subscription error: %v", p.party, err)
			// Continue processing - feed errors are non-fatal.
		}
	}
}

// matches filters the feed down to creations of Ping/Pong contracts from the
// resolved package that name this party as receiver. Everything else on the
// feed (archivals, own creations, foreign templates) is ignored.
func (p *Processor) matches(event *ledger.Event) bool {
	if event.Kind != ledger.EventKindCreated {
		return false
	}
	contract := &event.Contract
	if contract.Receiver != p.party {
		return false
	}
	if contract.Template.PackageID != p.module.PackageID || contract.Template.Module != p.module.Module {
		return false
	}
	return contract.Template.Entity == EntityPing || contract.Template.Entity == EntityPong
}

// react submits the complementary creation for one observed contract.
// A duplicate-command rejection means this event was already reacted to
// (re-delivery) and is absorbed silently.
func (p *Processor) react(ctx context.Context, observed *ledger.Contract) error {
	cmd, err := ReactCommand(p.appID, observed)
	if err != nil {
		return err
	}

	created, err := p.client.SubmitAndWait(ctx, cmd)
	if err != nil {
		if ledger.IsDuplicateCommand(err) {
			log.Printf("[Processor:%s] Already reacted to %s, skipping re-delivery", p.party, observed.ID)
			return nil
		}
		return fmt.Errorf("submission rejected: %w", err)
	}

	log.Printf("[Processor:%s] %s(%d) from %s answered with %s %s(%d)",
		p.party, observed.Template.Entity, observed.Count, observed.Sender,
		created.ID, created.Template.Entity, created.Count)
	return nil
}

// SeedContracts creates count initial Ping contracts from sender to receiver,
// counter 0 each. Seed command ids are deterministic per (sender, index), so
// re-running the same batch is absorbed as duplicates instead of producing
// extra contracts.
func SeedContracts(ctx context.Context, client *ledger.Client, appID string, module ledger.TemplateID, sender, receiver ledger.Party, count int) error {
	template := module
	template.Entity = EntityPing

	for i := 0; i < count; i++ {
		cmd := SeedCommand(appID, template, sender, receiver, i)
		if _, err := client.SubmitAndWait(ctx, cmd); err != nil {
			if ledger.IsDuplicateCommand(err) {
				log.Printf("[Seed] Contract %s already seeded, skipping", cmd.CommandID)
				continue
			}
			return fmt.Errorf("failed to seed contract %d from %s: %w", i, sender, err)
		}
	}

	return nil
}
