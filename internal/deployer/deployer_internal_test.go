package deployer

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func writeFile(c *qt.C, dir, name, content string) {
	c.Assert(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644), qt.IsNil)
}

func TestBuildCreateExtensionSQLMinimal(t *testing.T) {
	c := qt.New(t)
	c.Assert(buildCreateExtensionSQL("uuid-ossp", "", ""), qt.Equals, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`)
}

func TestBuildCreateExtensionSQLWithSchemaAndVersion(t *testing.T) {
	c := qt.New(t)
	got := buildCreateExtensionSQL("pgvector", "extensions", "0.5.1")
	c.Assert(got, qt.Equals, `CREATE EXTENSION IF NOT EXISTS "pgvector" SCHEMA "extensions" VERSION '0.5.1'`)
}

func TestScanDirFiltersByExtensionAndSorts(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	writeFile(c, dir, "b.pssql", "")
	writeFile(c, dir, "a.sql", "")
	writeFile(c, dir, "readme.md", "ignored")

	files, err := scanDir(dir, ".pssql", ".sql")
	c.Assert(err, qt.IsNil)
	c.Assert(files, qt.HasLen, 2)
	c.Assert(filepath.Base(files[0]), qt.Equals, "a.sql")
	c.Assert(filepath.Base(files[1]), qt.Equals, "b.pssql")
}

func TestScanDirMissingDirectoryIsEmpty(t *testing.T) {
	c := qt.New(t)
	files, err := scanDir(filepath.Join(c.TempDir(), "missing"), ".pssql")
	c.Assert(err, qt.IsNil)
	c.Assert(files, qt.HasLen, 0)
}

func TestQuoteIdentEscapesDoubleQuotes(t *testing.T) {
	c := qt.New(t)
	c.Assert(quoteIdent(`weird"table`), qt.Equals, `"weird""table"`)
}

func TestOrderedTableDefinitionsRespectsForeignKeys(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	writeFile(c, dir, "posts.pssql", `CREATE TABLE posts (
		id SERIAL PRIMARY KEY,
		user_id INTEGER REFERENCES users(id)
	);`)
	writeFile(c, dir, "users.pssql", `CREATE TABLE users (
		id SERIAL PRIMARY KEY
	);`)

	ordered, err := orderedTableDefinitions(dir)
	c.Assert(err, qt.IsNil)
	c.Assert(ordered, qt.HasLen, 2)
	c.Assert(ordered[0].Name, qt.Equals, "users")
	c.Assert(ordered[1].Name, qt.Equals, "posts")
}

func TestOrderedTableDefinitionsMissingDirIsEmpty(t *testing.T) {
	c := qt.New(t)
	ordered, err := orderedTableDefinitions(filepath.Join(c.TempDir(), "missing"))
	c.Assert(err, qt.IsNil)
	c.Assert(ordered, qt.HasLen, 0)
}

func TestOrderedTableDefinitionsDetectsCycle(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	writeFile(c, dir, "a.pssql", `CREATE TABLE a (id SERIAL PRIMARY KEY, b_id INTEGER REFERENCES b(id));`)
	writeFile(c, dir, "b.pssql", `CREATE TABLE b (id SERIAL PRIMARY KEY, a_id INTEGER REFERENCES a(id));`)

	_, err := orderedTableDefinitions(dir)
	c.Assert(err, qt.ErrorMatches, ".*[Cc]ircular.*")
}
