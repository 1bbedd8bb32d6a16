package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDuplicateCommand is returned by SubmitAndWait when the command id has
// already been accepted by the ledger. This is the expected, non-fatal
// outcome of re-submitting a command (or reacting twice to a re-delivered
// event) and callers should absorb it silently.
var ErrDuplicateCommand = errors.New("duplicate command id")

// ErrCommandExpired is returned by SubmitAndWait when the submission arrives
// outside the command's validity window.
var ErrCommandExpired = errors.New("command outside validity window")

// Client provides ledger-scoped Redis operations for one ledger.
// All keys and channels are automatically namespaced with the ledger name.
// The client is thread-safe and can be used concurrently from multiple
// goroutines, including the processors of several parties at once.
type Client struct {
	rdb        *redis.Client
	ledgerName string
}

// NewClient creates a new ledger client for the specified ledger.
// Returns an error if ledgerName is empty.
func NewClient(redisOpts *redis.Options, ledgerName string) (*Client, error) {
	if ledgerName == "" {
		return nil, fmt.Errorf("ledger name cannot be empty")
	}

	return &Client{
		rdb:        redis.NewClient(redisOpts),
		ledgerName: ledgerName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies ledger connectivity. Useful as a startup health check.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// UploadPackage stores a package payload on the ledger and returns its id.
// The id is the SHA-256 hex digest of the payload, so the operation is
// idempotent: uploading the same bytes twice yields the same id.
func (c *Client) UploadPackage(ctx context.Context, payload []byte) (PackageID, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("package payload cannot be empty")
	}

	digest := sha256.Sum256(payload)
	packageID := PackageID(hex.EncodeToString(digest[:]))

	key := PackageKey(c.ledgerName, packageID)
	if err := c.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to write package to Redis: %w", err)
	}

	if err := c.rdb.SAdd(ctx, PackageSetKey(c.ledgerName), string(packageID)).Err(); err != nil {
		return "", fmt.Errorf("failed to register package id: %w", err)
	}

	return packageID, nil
}

// ListPackages returns the ids of all packages uploaded to the ledger.
// The order carries no meaning; ids are sorted only to keep output stable.
func (c *Client) ListPackages(ctx context.Context) ([]PackageID, error) {
	members, err := c.rdb.SMembers(ctx, PackageSetKey(c.ledgerName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	sort.Strings(members)

	ids := make([]PackageID, len(members))
	for i, m := range members {
		ids[i] = PackageID(m)
	}
	return ids, nil
}

// GetPackage fetches one package's binary payload.
// Returns redis.Nil (check with IsNotFound) if the package doesn't exist.
func (c *Client) GetPackage(ctx context.Context, packageID PackageID) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, PackageKey(c.ledgerName, packageID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read package from Redis: %w", err)
	}
	return payload, nil
}

// SubmitAndWait submits a command and blocks until the ledger accepts or
// rejects it. On acceptance of a create (or of an exercise with a result
// payload) it returns the newly created contract.
//
// Rejections:
//   - ErrCommandExpired when the submission falls outside [NotBefore, NotAfter]
//   - ErrDuplicateCommand when the command id was already accepted
//
// The command id is reserved before the command is applied, so a duplicate
// can never be applied twice. A submission that reserved its id but crashed
// before applying burns that command id.
func (c *Client) SubmitAndWait(ctx context.Context, cmd *Command) (*Contract, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	now := time.Now()
	if now.Before(cmd.NotBefore) || now.After(cmd.NotAfter) {
		return nil, fmt.Errorf("command %s: %w", cmd.CommandID, ErrCommandExpired)
	}

	// Deduplication: reserve the command id atomically.
	reserved, err := c.rdb.SetNX(ctx, CommandKey(c.ledgerName, cmd.CommandID), cmd.SubmissionID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve command id: %w", err)
	}
	if !reserved {
		return nil, fmt.Errorf("command %s: %w", cmd.CommandID, ErrDuplicateCommand)
	}

	switch cmd.Kind {
	case CommandKindCreate:
		return c.applyCreate(ctx, cmd)

	case CommandKindExercise:
		return c.applyExercise(ctx, cmd)

	default:
		return nil, fmt.Errorf("unknown command kind: %q", cmd.Kind)
	}
}

// applyCreate writes a new contract and publishes its creation event.
func (c *Client) applyCreate(ctx context.Context, cmd *Command) (*Contract, error) {
	seq, err := c.rdb.Incr(ctx, ContractSeqKey(c.ledgerName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to assign contract id: %w", err)
	}

	contract := &Contract{
		ID:       ContractID(fmt.Sprintf("#%d", seq)),
		Template: cmd.Template,
		Sender:   cmd.Sender,
		Receiver: cmd.Receiver,
		Count:    cmd.Count,
	}
	if err := contract.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract: %w", err)
	}

	nowMs := time.Now().UnixMilli()
	key := ContractKey(c.ledgerName, contract.ID)
	if err := c.rdb.HSet(ctx, key, ContractToHash(contract, nowMs, 0)).Err(); err != nil {
		return nil, fmt.Errorf("failed to write contract to Redis: %w", err)
	}

	if err := c.rdb.SAdd(ctx, ContractSetKey(c.ledgerName), string(contract.ID)).Err(); err != nil {
		return nil, fmt.Errorf("failed to register contract id: %w", err)
	}

	if err := c.publishEvent(ctx, &Event{Kind: EventKindCreated, Contract: *contract, AtMs: nowMs}); err != nil {
		return nil, err
	}

	return contract, nil
}

// applyExercise archives the target contract, publishes the archival, and
// creates the result contract when the command carries a result payload.
func (c *Client) applyExercise(ctx context.Context, cmd *Command) (*Contract, error) {
	target, archivedAtMs, err := c.getContract(ctx, cmd.Target)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("exercise target %s not found", cmd.Target)
		}
		return nil, err
	}
	if archivedAtMs != 0 {
		return nil, fmt.Errorf("exercise target %s is already archived", cmd.Target)
	}

	nowMs := time.Now().UnixMilli()
	key := ContractKey(c.ledgerName, target.ID)
	if err := c.rdb.HSet(ctx, key, "archived_at_ms", nowMs).Err(); err != nil {
		return nil, fmt.Errorf("failed to archive contract: %w", err)
	}

	if err := c.publishEvent(ctx, &Event{Kind: EventKindArchived, Contract: *target, AtMs: nowMs}); err != nil {
		return nil, err
	}

	// Choices without a result payload only archive.
	if cmd.Template.Entity == "" {
		return nil, nil
	}

	return c.applyCreate(ctx, cmd)
}

// publishEvent delivers an event to the feed of every stakeholder party.
func (c *Client) publishEvent(ctx context.Context, ev *Event) error {
	eventJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	seen := make(map[Party]bool, 2)
	for _, party := range ev.Contract.Stakeholders() {
		if seen[party] {
			continue
		}
		seen[party] = true

		channel := PartyEventsChannel(c.ledgerName, party)
		if err := c.rdb.Publish(ctx, channel, eventJSON).Err(); err != nil {
			return fmt.Errorf("failed to publish event for party %s: %w", party, err)
		}
	}

	return nil
}

// GetContract retrieves a contract by id, whether active or archived.
// Returns (nil, redis.Nil) if the contract doesn't exist.
func (c *Client) GetContract(ctx context.Context, contractID ContractID) (*Contract, error) {
	contract, _, err := c.getContract(ctx, contractID)
	return contract, err
}

func (c *Client) getContract(ctx context.Context, contractID ContractID) (*Contract, int64, error) {
	hashData, err := c.rdb.HGetAll(ctx, ContractKey(c.ledgerName, contractID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read contract from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys.
	if len(hashData) == 0 {
		return nil, 0, redis.Nil
	}

	contract, archivedAtMs, err := HashToContract(hashData)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to deserialize contract: %w", err)
	}

	return contract, archivedAtMs, nil
}

// ListContracts returns every contract ever created on the ledger, archived
// ones included, ordered by creation (contract ids are sequential).
func (c *Client) ListContracts(ctx context.Context) ([]*Contract, error) {
	ids, err := c.rdb.SMembers(ctx, ContractSetKey(c.ledgerName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}

	contracts := make([]*Contract, 0, len(ids))
	for _, id := range ids {
		contract, _, err := c.getContract(ctx, ContractID(id))
		if err != nil {
			return nil, fmt.Errorf("failed to load contract %s: %w", id, err)
		}
		contracts = append(contracts, contract)
	}

	// Contract ids are "#<seq>"; sort numerically by creation order.
	sort.Slice(contracts, func(i, j int) bool {
		return contractSeq(contracts[i].ID) < contractSeq(contracts[j].ID)
	})

	return contracts, nil
}

func contractSeq(id ContractID) int64 {
	var seq int64
	fmt.Sscanf(string(id), "#%d", &seq)
	return seq
}

// EventSubscription represents an active Pub/Sub subscription to one party's
// event feed. Caller must call Close() when done to clean up resources.
type EventSubscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of ledger events.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *EventSubscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - malformed messages are skipped.
func (s *EventSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *EventSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to one party's event feed, scoped from "now".
// The feed is infinite: it delivers every event the party is a stakeholder
// of, in publish order, until the subscription is closed or the context is
// cancelled. Caller must call subscription.Close() when done.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once; a re-connected subscriber does not replay missed events.
func (c *Client) SubscribeEvents(ctx context.Context, party Party) (*EventSubscription, error) {
	if party == "" {
		return nil, fmt.Errorf("party cannot be empty")
	}

	channel := PartyEventsChannel(c.ledgerName, party)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *Event, 10)
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

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &EventSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error.
// Use this to check if GetPackage or GetContract returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsDuplicateCommand returns true if a submission was rejected because its
// command id was already accepted. This rejection is the idempotence
// mechanism working as intended, not a failure.
func IsDuplicateCommand(err error) bool {
	return errors.Is(err, ErrDuplicateCommand)
}

// IsCommandExpired returns true if a submission was rejected for falling
// outside its validity window.
func IsCommandExpired(err error) bool {
	return errors.Is(err, ErrCommandExpired)
}
