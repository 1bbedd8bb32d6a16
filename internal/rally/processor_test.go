package rally

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kesper43/volley/pkg/ledger"
)

const testLedgerName = "test-ledger"

func setupTestLedger(t *testing.T) (*ledger.Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := ledger.NewClient(&redis.Options{Addr: mr.Addr()}, testLedgerName)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testModule() ledger.TemplateID {
	return ledger.TemplateID{PackageID: "pkg-1", Module: "PingPong"}
}

// pollContracts polls the ledger until it holds want contracts, then returns
// them in creation order. Fails the test if the count is not reached in time.
func pollContracts(t *testing.T, client *ledger.Client, want int) []*ledger.Contract {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		contracts, err := client.ListContracts(context.Background())
		require.NoError(t, err)
		if len(contracts) >= want {
			return contracts
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d contracts, have %d", want, len(contracts))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// startProcessor runs a processor in the background and registers cleanup
// that stops it and waits for the loop to exit.
func startProcessor(t *testing.T, client *ledger.Client, party ledger.Party) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		processor := NewProcessor(client, party, "PingPongApp", testModule())
		processor.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the subscription a moment to attach before events start flowing.
	time.Sleep(100 * time.Millisecond)
}

func TestProcessor_ReactsWithComplement(t *testing.T) {
	client, _ := setupTestLedger(t)
	ctx := context.Background()

	startProcessor(t, client, "Bob")

	require.NoError(t, SeedContracts(ctx, client, "PingPongApp", testModule(), "Alice", "Bob", 3))

	// 3 seeded Pings plus Bob's 3 Pongs. Alice has no processor, so the
	// rally settles there.
	contracts := pollContracts(t, client, 6)
	require.Len(t, contracts, 6)

	pings := contracts[:3]
	pongs := contracts[3:]

	for _, contract := range pings {
		assert.Equal(t, EntityPing, contract.Template.Entity)
		assert.Equal(t, ledger.Party("Alice"), contract.Sender)
		assert.Equal(t, int64(0), contract.Count)
	}
	for _, contract := range pongs {
		assert.Equal(t, EntityPong, contract.Template.Entity)
		assert.Equal(t, ledger.Party("Bob"), contract.Sender)
		assert.Equal(t, ledger.Party("Alice"), contract.Receiver)
		assert.Equal(t, int64(1), contract.Count)
	}
}

func TestProcessor_IgnoresUnrelatedEvents(t *testing.T) {
	client, _ := setupTestLedger(t)
	ctx := context.Background()

	startProcessor(t, client, "Bob")

	// A contract from a different module, addressed to Bob.
	foreign := SeedCommand("PingPongApp", ledger.TemplateID{PackageID: "pkg-1", Module: "Billing", Entity: "Invoice"}, "Alice", "Bob", 0)
	foreign.CommandID = "foreign-0"
	_, err := client.SubmitAndWait(ctx, foreign)
	require.NoError(t, err)

	// A Ping where Bob is the sender, not the receiver.
	outbound := SeedCommand("PingPongApp", testModule(), "Bob", "Alice", 0)
	outbound.Template.Entity = EntityPing
	_, err = client.SubmitAndWait(ctx, outbound)
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)

	contracts, err := client.ListContracts(ctx)
	require.NoError(t, err)
	assert.Len(t, contracts, 2, "processor must not react to foreign or outbound contracts")
}

func TestProcessor_AbsorbsRedelivery(t *testing.T) {
	client, mr := setupTestLedger(t)
	ctx := context.Background()

	startProcessor(t, client, "Bob")

	require.NoError(t, SeedContracts(ctx, client, "PingPongApp", testModule(), "Alice", "Bob", 1))
	contracts := pollContracts(t, client, 2)

	// Replay the seeded Ping's creation event on Bob's feed, as a flaky
	// transport would. The reaction command id repeats, so the ledger
	// rejects it and no extra Pong appears.
	replay, err := json.Marshal(&ledger.Event{Kind: ledger.EventKindCreated, Contract: *contracts[0]})
	require.NoError(t, err)

	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer raw.Close()
	require.NoError(t, raw.Publish(ctx, ledger.PartyEventsChannel(testLedgerName, "Bob"), replay).Err())

	time.Sleep(300 * time.Millisecond)

	contracts, err = client.ListContracts(ctx)
	require.NoError(t, err)
	assert.Len(t, contracts, 2, "re-delivered event must not produce a second reaction")
}

func TestRally_TwoProcessors(t *testing.T) {
	client, _ := setupTestLedger(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	runCtx, cancel := context.WithCancel(context.Background())
	for _, party := range []ledger.Party{"Alice", "Bob"} {
		wg.Add(1)
		go func(party ledger.Party) {
			defer wg.Done()
			NewProcessor(client, party, "PingPongApp", testModule()).Run(runCtx)
		}(party)
	}
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, SeedContracts(ctx, client, "PingPongApp", testModule(), "Alice", "Bob", 1))
	require.NoError(t, SeedContracts(ctx, client, "PingPongApp", testModule(), "Bob", "Alice", 1))

	// Let the rally run a few volleys, then stop both processors.
	time.Sleep(700 * time.Millisecond)
	cancel()
	wg.Wait()

	contracts, err := client.ListContracts(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(contracts), 6, "expected the rally to progress past the seeds")

	// Counts per volley level. Every non-seed contract answers one at the
	// previous level, so level sizes can never grow.
	levels := make(map[int64]int)
	for _, contract := range contracts {
		require.GreaterOrEqual(t, contract.Count, int64(0))

		// Even counts are Pings, odd counts Pongs.
		if contract.Count%2 == 0 {
			assert.Equal(t, EntityPing, contract.Template.Entity)
		} else {
			assert.Equal(t, EntityPong, contract.Template.Entity)
		}

		assert.NotEqual(t, contract.Sender, contract.Receiver)
		levels[contract.Count]++
	}

	assert.Equal(t, 2, levels[0], "exactly the two seeds at count 0")
	for count := int64(1); int(count) < len(levels); count++ {
		assert.LessOrEqual(t, levels[count], levels[count-1],
			"level %d cannot outgrow level %d", count, count-1)
	}
}
