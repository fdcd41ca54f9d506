package changelog_test

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/changelog"
)

func TestChangeTypeValues(t *testing.T) {
	c := qt.New(t)
	c.Assert(string(changelog.ChangeMigrationApplied), qt.Equals, "migration_applied")
	c.Assert(string(changelog.ChangeFunctionDeployed), qt.Equals, "function_deployed")
	c.Assert(string(changelog.ChangeExtensionInstalled), qt.Equals, "extension_installed")
}

func TestEntryDetailsMarshalsToValidJSON(t *testing.T) {
	c := qt.New(t)

	entry := changelog.Entry{
		ChangeType: changelog.ChangeMigrationApplied,
		ObjectName: "001_create_users.pssql",
		Details:    map[string]any{"checksum": "abc123"},
	}

	b, err := json.Marshal(entry.Details)
	c.Assert(err, qt.IsNil)
	c.Assert(string(b), qt.Contains, "abc123")
}
