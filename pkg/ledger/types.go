package ledger

import (
	"fmt"
	"time"
)

// Party is a named participant identity authorized to submit commands and
// observe events on its own behalf.
type Party string

// ContractID is the unique, ledger-assigned reference of a contract.
type ContractID string

// PackageID is the opaque identifier of an uploaded package. The ledger
// assigns it as the SHA-256 hex digest of the package payload, so uploading
// the same payload twice yields the same id.
type PackageID string

// TemplateID identifies a contract template: the package that defines it,
// the module within that package, and the entity name within the module.
type TemplateID struct {
	PackageID PackageID `json:"package_id"`
	Module    string    `json:"module"`
	Entity    string    `json:"entity"`
}

// String renders the template id in package:module:entity form.
func (t TemplateID) String() string {
	return fmt.Sprintf("%s:%s:%s", t.PackageID, t.Module, t.Entity)
}

// Validate checks that all three components of the template id are present.
func (t TemplateID) Validate() error {
	if t.PackageID == "" {
		return fmt.Errorf("template id missing package id")
	}
	if t.Module == "" {
		return fmt.Errorf("template id missing module name")
	}
	if t.Entity == "" {
		return fmt.Errorf("template id missing entity name")
	}
	return nil
}

// Contract represents an immutable record held by the ledger.
// Contracts are created via commands and observed via events; they are never
// mutated in place. Responding to a contract creates a new one with the
// counter incremented and sender/receiver swapped.
type Contract struct {
	ID       ContractID `json:"id"`       // Ledger-assigned unique reference
	Template TemplateID `json:"template"` // Template this contract instantiates
	Sender   Party      `json:"sender"`   // Party that created the contract
	Receiver Party      `json:"receiver"` // Party expected to react to it
	Count    int64      `json:"count"`    // Position in the alternating chain (starts at 0)
}

// Validate checks if the Contract has valid field values.
func (c *Contract) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("contract id cannot be empty")
	}
	if err := c.Template.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	if c.Sender == "" {
		return fmt.Errorf("contract sender cannot be empty")
	}
	if c.Receiver == "" {
		return fmt.Errorf("contract receiver cannot be empty")
	}
	if c.Sender == c.Receiver {
		return fmt.Errorf("contract sender and receiver must differ")
	}
	if c.Count < 0 {
		return fmt.Errorf("contract count must be >= 0, got %d", c.Count)
	}
	return nil
}

// Stakeholders returns the parties that observe this contract's events.
func (c *Contract) Stakeholders() []Party {
	return []Party{c.Sender, c.Receiver}
}

// CommandKind distinguishes the two ledger actions a command can request.
type CommandKind string

const (
	// CommandKindCreate creates a new contract from the command's payload fields.
	CommandKindCreate CommandKind = "create"

	// CommandKindExercise exercises a choice on an active contract, archiving
	// it and optionally creating a result contract.
	CommandKindExercise CommandKind = "exercise"
)

// Validate checks if the CommandKind is a valid enum value.
func (k CommandKind) Validate() error {
	switch k {
	case CommandKindCreate, CommandKindExercise:
		return nil
	default:
		return fmt.Errorf("unknown command kind: %q", k)
	}
}

// Command is an intended ledger action. Commands are immutable once built:
// the builder hands them to SubmitAndWait and they are not reused.
//
// CommandID is the deduplication identifier. The ledger accepts at most one
// command per id; re-submitting the same id is rejected with
// ErrDuplicateCommand regardless of the rest of the payload.
type Command struct {
	CommandID     string      `json:"command_id"`     // Caller-chosen deduplication identifier
	ApplicationID string      `json:"application_id"` // Application namespace for the submission
	Party         Party       `json:"party"`          // Acting (submitting) party
	SubmissionID  string      `json:"submission_id"`  // Unique id of this one submission attempt
	NotBefore     time.Time   `json:"not_before"`     // Start of the validity window
	NotAfter      time.Time   `json:"not_after"`      // End of the validity window
	Kind          CommandKind `json:"kind"`

	// Create payload. Also used as the result contract of an exercise when
	// Template.Entity is set; the ledger assigns the contract id.
	Template TemplateID `json:"template,omitempty"`
	Sender   Party      `json:"sender,omitempty"`
	Receiver Party      `json:"receiver,omitempty"`
	Count    int64      `json:"count,omitempty"`

	// Exercise payload.
	Target ContractID `json:"target,omitempty"` // Contract the choice is exercised on
	Choice string     `json:"choice,omitempty"` // Name of the exercised choice
}

// Validate checks if the Command has valid field values for its kind.
func (cmd *Command) Validate() error {
	if cmd.CommandID == "" {
		return fmt.Errorf("command id cannot be empty")
	}
	if cmd.ApplicationID == "" {
		return fmt.Errorf("application id cannot be empty")
	}
	if cmd.Party == "" {
		return fmt.Errorf("command party cannot be empty")
	}
	if cmd.SubmissionID == "" {
		return fmt.Errorf("submission id cannot be empty")
	}
	if cmd.NotBefore.IsZero() || cmd.NotAfter.IsZero() {
		return fmt.Errorf("command validity window must be set")
	}
	if !cmd.NotAfter.After(cmd.NotBefore) {
		return fmt.Errorf("command validity window is empty: not_after must follow not_before")
	}
	if err := cmd.Kind.Validate(); err != nil {
		return err
	}

	switch cmd.Kind {
	case CommandKindCreate:
		return cmd.validateCreatePayload()

	case CommandKindExercise:
		if cmd.Target == "" {
			return fmt.Errorf("exercise command missing target contract id")
		}
		if cmd.Choice == "" {
			return fmt.Errorf("exercise command missing choice name")
		}
		// A result payload is optional; when present it must be well-formed.
		if cmd.Template.Entity != "" {
			return cmd.validateCreatePayload()
		}
	}

	return nil
}

func (cmd *Command) validateCreatePayload() error {
	if err := cmd.Template.Validate(); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	if cmd.Sender == "" || cmd.Receiver == "" {
		return fmt.Errorf("create payload requires sender and receiver")
	}
	if cmd.Sender == cmd.Receiver {
		return fmt.Errorf("create payload sender and receiver must differ")
	}
	if cmd.Count < 0 {
		return fmt.Errorf("create payload count must be >= 0, got %d", cmd.Count)
	}
	return nil
}

// EventKind distinguishes contract creations from archivals.
type EventKind string

const (
	// EventKindCreated signals a new active contract.
	EventKindCreated EventKind = "created"

	// EventKindArchived signals a contract leaving the active set.
	EventKindArchived EventKind = "archived"
)

// Validate checks if the EventKind is a valid enum value.
func (k EventKind) Validate() error {
	switch k {
	case EventKindCreated, EventKindArchived:
		return nil
	default:
		return fmt.Errorf("unknown event kind: %q", k)
	}
}

// Event is an observed ledger occurrence delivered on a party-scoped feed.
// Events are read-only to clients; they are constructed by the ledger when a
// command is applied.
type Event struct {
	Kind     EventKind `json:"kind"`
	Contract Contract  `json:"contract"`
	AtMs     int64     `json:"at_ms"` // Unix timestamp in milliseconds at commit
}
