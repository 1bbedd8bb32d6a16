// Package rally implements the ping-pong exchange: building reaction and
// seed commands, and running the perpetual per-party reactive processor that
// keeps the rally going.
package rally

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kesper43/volley/pkg/ledger"
)

const (
	// EntityPing and EntityPong are the two linked template entities of the
	// PingPong module. Every reaction creates the complement of what it saw.
	EntityPing = "Ping"
	EntityPong = "Pong"

	// ValidityWindow bounds how stale a submission may be. Submission and
	// acknowledgment happen on the same logical turn, so a short fixed
	// window is sufficient.
	ValidityWindow = 10 * time.Second
)

// ComplementEntity returns the entity a reaction to the given entity creates.
func ComplementEntity(entity string) (string, error) {
	switch entity {
	case EntityPing:
		return EntityPong, nil
	case EntityPong:
		return EntityPing, nil
	default:
		return "", fmt.Errorf("entity %q has no complement", entity)
	}
}

// SeedCommand builds the creation command for one initial contract with
// count 0, sent by sender to receiver.
//
// The command id is derived from the intent, the sender and the sequence
// index, so re-running the same seed batch is idempotent: the ledger rejects
// the repeats as duplicates instead of double-seeding.
func SeedCommand(appID string, template ledger.TemplateID, sender, receiver ledger.Party, index int) *ledger.Command {
	now := time.Now()
	return &ledger.Command{
		CommandID:     fmt.Sprintf("seed-%s-%d", sender, index),
		ApplicationID: appID,
		Party:         sender,
		SubmissionID:  uuid.New().String(),
		NotBefore:     now,
		NotAfter:      now.Add(ValidityWindow),
		Kind:          ledger.CommandKindCreate,
		Template:      template,
		Sender:        sender,
		Receiver:      receiver,
		Count:         0,
	}
}

// ReactCommand builds the creation command for the complement of an observed
// contract: sender and receiver swapped, count incremented, entity flipped.
//
// The command id is derived from the observed contract's ledger-assigned
// reference. The event feed is allowed to deliver the same event more than
// once; a second reaction then carries the same command id and the ledger
// rejects it as a duplicate rather than double-processing.
func ReactCommand(appID string, observed *ledger.Contract) (*ledger.Command, error) {
	complement, err := ComplementEntity(observed.Template.Entity)
	if err != nil {
		return nil, err
	}

	template := observed.Template
	template.Entity = complement

	now := time.Now()
	return &ledger.Command{
		CommandID:     fmt.Sprintf("react-%s", observed.ID),
		ApplicationID: appID,
		Party:         observed.Receiver,
		SubmissionID:  uuid.New().String(),
		NotBefore:     now,
		NotAfter:      now.Add(ValidityWindow),
		Kind:          ledger.CommandKindCreate,
		Template:      template,
		Sender:        observed.Receiver,
		Receiver:      observed.Sender,
		Count:         observed.Count + 1,
	}, nil
}
