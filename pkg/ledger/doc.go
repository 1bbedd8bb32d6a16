// Package ledger provides type-safe Go definitions and Redis schema patterns
// for the Volley ledger boundary.
//
// # Overview
//
// The ledger is the shared, append-only record store that all Volley parties
// interact with. Parties never talk to each other directly: one party submits
// a command that creates a contract, the other observes the creation on its
// own event feed and reacts with a command of its own. The ledger interface
// exposed here covers the four operations a party needs: package listing,
// package fetch, command submission, and event subscription.
//
// # Core Concepts
//
// Contracts are immutable records with a template type, a sender, a receiver
// and a counter. A contract is never mutated in place; responding to one means
// creating a brand-new contract linked by counter+1 with sender and receiver
// swapped.
//
// Commands are client-issued requests to create a contract or exercise a
// choice on one. Every command carries a caller-chosen command identifier
// that the ledger uses to reject repeat submissions of the same command, and
// a validity window outside of which the submission is rejected as stale.
//
// Events notify a party of contract creations and archivals it is a
// stakeholder of, delivered in commit order on a party-scoped feed.
//
// # Multi-Ledger Support
//
// All Redis keys and Pub/Sub channels are namespaced by ledger name so that
// multiple independent ledgers can coexist on a single Redis server.
//
// # Usage Example
//
//	client, err := ledger.NewClient(&redis.Options{Addr: "localhost:6379"}, "sandbox")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	sub, err := client.SubscribeEvents(ctx, "Alice")
//	if err != nil {
//		return err
//	}
//	defer sub.Close()
//
//	for ev := range sub.Events() {
//		// react to ev.Contract
//	}
package ledger
