package migrate_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/dbreader"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/migrate"
)

func writeTableFile(c *qt.C, dir, name, content string) {
	c.Assert(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644), qt.IsNil)
}

func TestParseDesiredSchemaMissingDirIsEmpty(t *testing.T) {
	c := qt.New(t)

	gate := migrate.NewDiffGate()
	desired, err := gate.ParseDesiredSchema(filepath.Join(c.TempDir(), "missing"))
	c.Assert(err, qt.IsNil)
	c.Assert(desired, qt.HasLen, 0)
}

func TestDiffNewTableIsSafe(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	writeTableFile(c, dir, "users.pssql", `CREATE TABLE users (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL
	);`)

	gate := migrate.NewDiffGate()
	desired, err := gate.ParseDesiredSchema(dir)
	c.Assert(err, qt.IsNil)

	diff := gate.Diff(desired, map[string]*dbreader.Table{})
	c.Assert(diff.IsSafe(), qt.IsTrue)
	c.Assert(diff.Safe, qt.HasLen, 1)
	c.Assert(diff.Safe[0].Kind, qt.Equals, migrate.ChangeCreateTable)
}

func TestDiffDroppedTableIsDataLoss(t *testing.T) {
	c := qt.New(t)

	gate := migrate.NewDiffGate()
	current := map[string]*dbreader.Table{
		"legacy": {Name: "legacy", Columns: map[string]dbreader.Column{
			"id": {Name: "id", DataType: "integer"},
		}},
	}

	diff := gate.Diff(map[string]migrate.DesiredTable{}, current)
	c.Assert(diff.IsSafe(), qt.IsFalse)
	c.Assert(diff.DataLoss, qt.HasLen, 1)
	c.Assert(diff.DataLoss[0].Kind, qt.Equals, migrate.ChangeDropTable)
	c.Assert(diff.DataLoss[0].Table, qt.Equals, "legacy")
}

func TestDiffAddNotNullColumnWithoutDefaultIsDataLoss(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	writeTableFile(c, dir, "users.pssql", `CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		email VARCHAR(255) NOT NULL
	);`)

	gate := migrate.NewDiffGate()
	desired, err := gate.ParseDesiredSchema(dir)
	c.Assert(err, qt.IsNil)

	current := map[string]*dbreader.Table{
		"users": {Name: "users", Columns: map[string]dbreader.Column{
			"id": {Name: "id", DataType: "integer", IsNullable: false},
		}},
	}

	diff := gate.Diff(desired, current)
	c.Assert(diff.IsSafe(), qt.IsFalse)
	c.Assert(diff.DataLoss, qt.HasLen, 1)
	c.Assert(diff.DataLoss[0].Kind, qt.Equals, migrate.ChangeAddColumn)
	c.Assert(diff.DataLoss[0].Column, qt.Equals, "email")
}

func TestDiffDropColumnIsDataLoss(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	writeTableFile(c, dir, "users.pssql", `CREATE TABLE users (
		id INTEGER PRIMARY KEY
	);`)

	gate := migrate.NewDiffGate()
	desired, err := gate.ParseDesiredSchema(dir)
	c.Assert(err, qt.IsNil)

	current := map[string]*dbreader.Table{
		"users": {Name: "users", Columns: map[string]dbreader.Column{
			"id":     {Name: "id", DataType: "integer", IsNullable: false},
			"legacy": {Name: "legacy", DataType: "text", IsNullable: true},
		}},
	}

	diff := gate.Diff(desired, current)
	c.Assert(diff.IsSafe(), qt.IsFalse)
	c.Assert(diff.DataLoss, qt.HasLen, 1)
	c.Assert(diff.DataLoss[0].Kind, qt.Equals, migrate.ChangeDropColumn)
	c.Assert(diff.DataLoss[0].Column, qt.Equals, "legacy")
	c.Assert(diff.DataLoss[0].FromType, qt.Equals, "TEXT")
}
