package ledger

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by ledger name to enable
// multiple independent ledgers to coexist on a single Redis server.
//
// Key pattern: volley:{ledger_name}:{entity}:{id}
// Channel pattern: volley:{ledger_name}:party:{party}:events

// PackageSetKey returns the Redis key for the set of uploaded package ids.
// Pattern: volley:{ledger_name}:packages
func PackageSetKey(ledgerName string) string {
	return fmt.Sprintf("volley:%s:packages", ledgerName)
}

// PackageKey returns the Redis key holding one package's binary payload.
// Pattern: volley:{ledger_name}:package:{package_id}
func PackageKey(ledgerName string, packageID PackageID) string {
	return fmt.Sprintf("volley:%s:package:%s", ledgerName, packageID)
}

// ContractKey returns the Redis key for a contract hash.
// Pattern: volley:{ledger_name}:contract:{contract_id}
func ContractKey(ledgerName string, contractID ContractID) string {
	return fmt.Sprintf("volley:%s:contract:%s", ledgerName, contractID)
}

// ContractSetKey returns the Redis key for the set of all contract ids ever
// created on the ledger, archived ones included.
// Pattern: volley:{ledger_name}:contracts
func ContractSetKey(ledgerName string) string {
	return fmt.Sprintf("volley:%s:contracts", ledgerName)
}

// ContractSeqKey returns the Redis key of the counter used to assign
// contract ids. Pattern: volley:{ledger_name}:contract_seq
func ContractSeqKey(ledgerName string) string {
	return fmt.Sprintf("volley:%s:contract_seq", ledgerName)
}

// CommandKey returns the Redis key reserving a command id for deduplication.
// The key is written exactly once (SETNX); a second submission with the same
// command id finds the key taken and is rejected.
// Pattern: volley:{ledger_name}:command:{command_id}
func CommandKey(ledgerName string, commandID string) string {
	return fmt.Sprintf("volley:%s:command:%s", ledgerName, commandID)
}

// PartyEventsChannel returns the Pub/Sub channel carrying one party's event
// feed. A party's feed carries every contract it is a stakeholder of.
// Pattern: volley:{ledger_name}:party:{party}:events
func PartyEventsChannel(ledgerName string, party Party) string {
	return fmt.Sprintf("volley:%s:party:%s:events", ledgerName, party)
}
