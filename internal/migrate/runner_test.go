package migrate_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/migrate"
)

func writeMigrationFile(c *qt.C, dir, name, content string) {
	c.Assert(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644), qt.IsNil)
}

func TestFindFilesSortsAndChecksums(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()

	writeMigrationFile(c, dir, "0002_posts.pssql", "CREATE TABLE posts (id SERIAL PRIMARY KEY);")
	writeMigrationFile(c, dir, "0001_users.pssql", "CREATE TABLE users (id SERIAL PRIMARY KEY);")
	writeMigrationFile(c, dir, "readme.txt", "not a migration")

	files, err := migrate.FindFiles(dir)
	c.Assert(err, qt.IsNil)
	c.Assert(files, qt.HasLen, 2)
	c.Assert(files[0].Name, qt.Equals, "0001_users.pssql")
	c.Assert(files[1].Name, qt.Equals, "0002_posts.pssql")
	c.Assert(files[0].Checksum, qt.Not(qt.Equals), "")
	c.Assert(files[0].Checksum, qt.Not(qt.Equals), files[1].Checksum)
}

func TestFindFilesMissingDirectory(t *testing.T) {
	c := qt.New(t)

	files, err := migrate.FindFiles(filepath.Join(c.TempDir(), "does-not-exist"))
	c.Assert(err, qt.IsNil)
	c.Assert(files, qt.HasLen, 0)
}

func TestOrderFilesRespectsDependencies(t *testing.T) {
	c := qt.New(t)

	files := []migrate.File{
		{
			Name: "0002_posts.pssql",
			SQL: `CREATE TABLE posts (
				id SERIAL PRIMARY KEY,
				author_id INTEGER REFERENCES users(id)
			);`,
		},
		{
			Name: "0001_users.pssql",
			SQL:  `CREATE TABLE users (id SERIAL PRIMARY KEY);`,
		},
	}

	ordered, err := migrate.OrderFiles(files)
	c.Assert(err, qt.IsNil)
	c.Assert(ordered, qt.HasLen, 2)
	c.Assert(ordered[0].Name, qt.Equals, "0001_users.pssql")
	c.Assert(ordered[1].Name, qt.Equals, "0002_posts.pssql")
}

func TestOrderFilesLexicalTiebreak(t *testing.T) {
	c := qt.New(t)

	files := []migrate.File{
		{Name: "0001_b_table.pssql", SQL: `CREATE TABLE b_table (id SERIAL PRIMARY KEY);`},
		{Name: "0001_a_table.pssql", SQL: `CREATE TABLE a_table (id SERIAL PRIMARY KEY);`},
	}

	ordered, err := migrate.OrderFiles(files)
	c.Assert(err, qt.IsNil)
	c.Assert(ordered[0].Name, qt.Equals, "0001_a_table.pssql")
	c.Assert(ordered[1].Name, qt.Equals, "0001_b_table.pssql")
}

func TestOrderFilesNonTableMigrationSortsByNameAlone(t *testing.T) {
	c := qt.New(t)

	files := []migrate.File{
		{Name: "0002_alter.pssql", SQL: `ALTER TABLE users ADD COLUMN nickname TEXT;`},
		{Name: "0001_users.pssql", SQL: `CREATE TABLE users (id SERIAL PRIMARY KEY);`},
	}

	ordered, err := migrate.OrderFiles(files)
	c.Assert(err, qt.IsNil)
	c.Assert(ordered[0].Name, qt.Equals, "0001_users.pssql")
	c.Assert(ordered[1].Name, qt.Equals, "0002_alter.pssql")
}
