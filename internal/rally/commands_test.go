package rally

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kesper43/volley/pkg/ledger"
)

func TestComplementEntity(t *testing.T) {
	pong, err := ComplementEntity(EntityPing)
	require.NoError(t, err)
	assert.Equal(t, EntityPong, pong)

	ping, err := ComplementEntity(EntityPong)
	require.NoError(t, err)
	assert.Equal(t, EntityPing, ping)

	_, err = ComplementEntity("Smash")
	assert.Error(t, err)
}

func TestSeedCommand(t *testing.T) {
	template := ledger.TemplateID{PackageID: "pkg-1", Module: "PingPong", Entity: EntityPing}

	cmd := SeedCommand("PingPongApp", template, "Alice", "Bob", 3)

	assert.Equal(t, "seed-Alice-3", cmd.CommandID)
	assert.Equal(t, "PingPongApp", cmd.ApplicationID)
	assert.Equal(t, ledger.Party("Alice"), cmd.Party)
	assert.Equal(t, ledger.CommandKindCreate, cmd.Kind)
	assert.Equal(t, template, cmd.Template)
	assert.Equal(t, ledger.Party("Alice"), cmd.Sender)
	assert.Equal(t, ledger.Party("Bob"), cmd.Receiver)
	assert.Equal(t, int64(0), cmd.Count)
	assert.Equal(t, ValidityWindow, cmd.NotAfter.Sub(cmd.NotBefore))
	assert.NoError(t, cmd.Validate())

	t.Run("command id is deterministic per sender and index", func(t *testing.T) {
		again := SeedCommand("PingPongApp", template, "Alice", "Bob", 3)
		assert.Equal(t, cmd.CommandID, again.CommandID)
		assert.NotEqual(t, cmd.SubmissionID, again.SubmissionID)
	})
}

func TestReactCommand(t *testing.T) {
	observed := &ledger.Contract{
		ID:       "#7",
		Template: ledger.TemplateID{PackageID: "pkg-1", Module: "PingPong", Entity: EntityPing},
		Sender:   "Alice",
		Receiver: "Bob",
		Count:    4,
	}

	cmd, err := ReactCommand("PingPongApp", observed)
	require.NoError(t, err)

	// The reaction mirrors the observed contract: complement entity, swapped
	// parties, incremented count.
	assert.Equal(t, "react-#7", cmd.CommandID)
	assert.Equal(t, ledger.Party("Bob"), cmd.Party)
	assert.Equal(t, EntityPong, cmd.Template.Entity)
	assert.Equal(t, "pkg-1", string(cmd.Template.PackageID))
	assert.Equal(t, "PingPong", cmd.Template.Module)
	assert.Equal(t, ledger.Party("Bob"), cmd.Sender)
	assert.Equal(t, ledger.Party("Alice"), cmd.Receiver)
	assert.Equal(t, int64(5), cmd.Count)
	assert.NoError(t, cmd.Validate())

	t.Run("re-delivery yields the same command id", func(t *testing.T) {
		again, err := ReactCommand("PingPongApp", observed)
		require.NoError(t, err)
		assert.Equal(t, cmd.CommandID, again.CommandID)
	})

	t.Run("pong observed answers with ping", func(t *testing.T) {
		pong := *observed
		pong.Template.Entity = EntityPong

		cmd, err := ReactCommand("PingPongApp", &pong)
		require.NoError(t, err)
		assert.Equal(t, EntityPing, cmd.Template.Entity)
	})

	t.Run("foreign entity has no reaction", func(t *testing.T) {
		foreign := *observed
		foreign.Template.Entity = "Invoice"

		_, err := ReactCommand("PingPongApp", &foreign)
		assert.Error(t, err)
	})
}

func TestReactCommand_ValidityWindow(t *testing.T) {
	observed := &ledger.Contract{
		ID:       "#1",
		Template: ledger.TemplateID{PackageID: "pkg-1", Module: "PingPong", Entity: EntityPing},
		Sender:   "Alice",
		Receiver: "Bob",
	}

	before := time.Now()
	cmd, err := ReactCommand("PingPongApp", observed)
	require.NoError(t, err)
	after := time.Now()

	assert.False(t, cmd.NotBefore.Before(before))
	assert.False(t, cmd.NotBefore.After(after))
	assert.Equal(t, ValidityWindow, cmd.NotAfter.Sub(cmd.NotBefore))
}
