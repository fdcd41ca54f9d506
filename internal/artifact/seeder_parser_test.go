package artifact_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
)

func TestParseSeederFileSingleRow(t *testing.T) {
	c := qt.New(t)

	sql := `-- seed default roles
INSERT INTO roles (id, name) VALUES (1, 'admin');`

	seeder, ok := artifact.ParseSeederFile("roles.pssql", sql)
	c.Assert(ok, qt.IsTrue)
	c.Assert(seeder.Table, qt.Equals, "roles")
	c.Assert(seeder.PrimaryKey, qt.Equals, "id")
	c.Assert(seeder.Rows, qt.HasLen, 1)
	c.Assert(seeder.Rows[0].Values, qt.DeepEquals, []string{"1", "'admin'"})
}

func TestParseSeederFileMultiRow(t *testing.T) {
	c := qt.New(t)

	sql := `INSERT INTO roles (id, name) VALUES
(1, 'admin'),
(2, 'member'),
(3, 'guest')
ON CONFLICT (id) DO NOTHING;`

	seeder, ok := artifact.ParseSeederFile("roles.pssql", sql)
	c.Assert(ok, qt.IsTrue)
	c.Assert(seeder.Rows, qt.HasLen, 3)
	c.Assert(seeder.Rows[2].Values, qt.DeepEquals, []string{"3", "'guest'"})
}

func TestParseSeederFileQuotedCommaInValue(t *testing.T) {
	c := qt.New(t)

	sql := `INSERT INTO notes (id, body) VALUES (1, 'hello, world');`

	seeder, ok := artifact.ParseSeederFile("notes.pssql", sql)
	c.Assert(ok, qt.IsTrue)
	c.Assert(seeder.Rows, qt.HasLen, 1)
	c.Assert(seeder.Rows[0].Values, qt.DeepEquals, []string{"1", "'hello, world'"})
}

func TestParseSeederFileNoInsert(t *testing.T) {
	c := qt.New(t)

	_, ok := artifact.ParseSeederFile("empty.pssql", "-- nothing here")
	c.Assert(ok, qt.IsFalse)
}

func TestParseTypeFileEnum(t *testing.T) {
	c := qt.New(t)

	ct, ok := artifact.ParseTypeFile("status.pssql", "CREATE TYPE status AS ENUM ('active', 'inactive');")
	c.Assert(ok, qt.IsTrue)
	c.Assert(ct.Kind, qt.Equals, artifact.TypeKindEnum)
	c.Assert(ct.Name, qt.Equals, "status")
}

func TestParseTypeFileDomain(t *testing.T) {
	c := qt.New(t)

	ct, ok := artifact.ParseTypeFile("email.pssql", "CREATE DOMAIN email AS TEXT CHECK (VALUE ~ '^.+@.+$');")
	c.Assert(ok, qt.IsTrue)
	c.Assert(ct.Kind, qt.Equals, artifact.TypeKindDomain)
}

func TestParseExtensionFileHeader(t *testing.T) {
	c := qt.New(t)

	ext := artifact.ParseExtensionFile("pgvector.pssql", "-- version: 0.5.1\n-- schema: extensions\n")
	c.Assert(ext.Name, qt.Equals, "pgvector")
	c.Assert(ext.Version, qt.Equals, "0.5.1")
	c.Assert(ext.Schema, qt.Equals, "extensions")
}
