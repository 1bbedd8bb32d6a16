package ledger

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Contracts are stored as string-to-string maps (hashes) so individual fields
// stay queryable. The template id is flattened into three fields rather than
// JSON-encoded; an archived contract keeps its hash with archived_at_ms set,
// preserving the full chain for inspection after the fact.

// ContractToHash converts a Contract plus its bookkeeping timestamps to a
// Redis hash format.
func ContractToHash(c *Contract, createdAtMs, archivedAtMs int64) map[string]interface{} {
	return map[string]interface{}{
		"id":             string(c.ID),
		"package_id":     string(c.Template.PackageID),
		"module":         c.Template.Module,
		"entity":         c.Template.Entity,
		"sender":         string(c.Sender),
		"receiver":       string(c.Receiver),
		"count":          c.Count,
		"created_at_ms":  createdAtMs,
		"archived_at_ms": archivedAtMs,
	}
}

// HashToContract converts a Redis hash back to a Contract.
// Returns the contract together with its archival timestamp (0 = active).
func HashToContract(hash map[string]string) (*Contract, int64, error) {
	count, err := strconv.ParseInt(hash["count"], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid count field: %w", err)
	}

	archivedAtMs, err := strconv.ParseInt(hash["archived_at_ms"], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid archived_at_ms field: %w", err)
	}

	contract := &Contract{
		ID: ContractID(hash["id"]),
		Template: TemplateID{
			PackageID: PackageID(hash["package_id"]),
			Module:    hash["module"],
			Entity:    hash["entity"],
		},
		Sender:   Party(hash["sender"]),
		Receiver: Party(hash["receiver"]),
		Count:    count,
	}

	return contract, archivedAtMs, nil
}
