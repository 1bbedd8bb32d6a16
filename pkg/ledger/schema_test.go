package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyNamespacing(t *testing.T) {
	assert.Equal(t, "volley:sandbox:packages", PackageSetKey("sandbox"))
	assert.Equal(t, "volley:sandbox:package:abc123", PackageKey("sandbox", "abc123"))
	assert.Equal(t, "volley:sandbox:contract:#7", ContractKey("sandbox", "#7"))
	assert.Equal(t, "volley:sandbox:contracts", ContractSetKey("sandbox"))
	assert.Equal(t, "volley:sandbox:contract_seq", ContractSeqKey("sandbox"))
	assert.Equal(t, "volley:sandbox:command:seed-Alice-0", CommandKey("sandbox", "seed-Alice-0"))
	assert.Equal(t, "volley:sandbox:party:Bob:events", PartyEventsChannel("sandbox", "Bob"))
}

func TestKeyNamespacing_LedgerIsolation(t *testing.T) {
	// Two ledgers on one Redis server never share keys or channels.
	assert.NotEqual(t, ContractKey("a", "#1"), ContractKey("b", "#1"))
	assert.NotEqual(t, PartyEventsChannel("a", "Alice"), PartyEventsChannel("b", "Alice"))
}
