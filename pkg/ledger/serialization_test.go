package ledger

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractHashRoundTrip(t *testing.T) {
	contract := &Contract{
		ID:       "#42",
		Template: TemplateID{PackageID: "pkg-1", Module: "PingPong", Entity: "Pong"},
		Sender:   "Bob",
		Receiver: "Alice",
		Count:    7,
	}

	hash := ContractToHash(contract, 1700000000000, 0)

	// Convert to the string map shape HGetAll returns.
	stringHash := make(map[string]string, len(hash))
	for k, v := range hash {
		stringHash[k] = toRedisString(v)
	}

	decoded, archivedAtMs, err := HashToContract(stringHash)
	require.NoError(t, err)
	assert.Equal(t, contract, decoded)
	assert.Equal(t, int64(0), archivedAtMs)
}

func TestHashToContract_ArchivedTimestamp(t *testing.T) {
	contract := &Contract{
		ID:       "#1",
		Template: TemplateID{PackageID: "pkg-1", Module: "PingPong", Entity: "Ping"},
		Sender:   "Alice",
		Receiver: "Bob",
	}

	hash := ContractToHash(contract, 1700000000000, 1700000005000)
	stringHash := make(map[string]string, len(hash))
	for k, v := range hash {
		stringHash[k] = toRedisString(v)
	}

	_, archivedAtMs, err := HashToContract(stringHash)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000005000), archivedAtMs)
}

func TestHashToContract_BadFields(t *testing.T) {
	t.Run("invalid count", func(t *testing.T) {
		_, _, err := HashToContract(map[string]string{"count": "seven", "archived_at_ms": "0"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "count")
	})

	t.Run("invalid archived_at_ms", func(t *testing.T) {
		_, _, err := HashToContract(map[string]string{"count": "0", "archived_at_ms": "soon"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "archived_at_ms")
	})
}

// toRedisString mimics how Redis stores hash values: everything is a string.
func toRedisString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		panic("unexpected hash value type in test")
	}
}
