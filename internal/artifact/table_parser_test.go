package artifact_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
)

func TestParseTableFileSimple(t *testing.T) {
	c := qt.New(t)

	sql := `
-- Users table
CREATE TABLE users (
    id SERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
`
	defs, err := artifact.ParseTableFile("users.pssql", sql)
	c.Assert(err, qt.IsNil)
	c.Assert(defs, qt.HasLen, 1)
	c.Assert(defs[0].Name, qt.Equals, "users")
	c.Assert(defs[0].DependsOn, qt.HasLen, 0)
}

func TestParseTableFileForeignKey(t *testing.T) {
	c := qt.New(t)

	sql := `
CREATE TABLE posts (
    id SERIAL PRIMARY KEY,
    user_id INT REFERENCES users(id),
    title TEXT NOT NULL
);
`
	defs, err := artifact.ParseTableFile("posts.pssql", sql)
	c.Assert(err, qt.IsNil)
	c.Assert(defs, qt.HasLen, 1)
	c.Assert(defs[0].Name, qt.Equals, "posts")
	c.Assert(defs[0].DependsOn, qt.Contains, "users")
}

func TestParseTableFileTableLevelForeignKey(t *testing.T) {
	c := qt.New(t)

	sql := `
CREATE TABLE comments (
    id SERIAL PRIMARY KEY,
    post_id INT NOT NULL,
    user_id INT NOT NULL,
    FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
);
`
	defs, err := artifact.ParseTableFile("comments.pssql", sql)
	c.Assert(err, qt.IsNil)
	c.Assert(defs, qt.HasLen, 1)
	c.Assert(defs[0].DependsOn, qt.Contains, "posts")
	c.Assert(defs[0].DependsOn, qt.Contains, "users")
}

func TestSplitTableBodyRespectsNestedParens(t *testing.T) {
	c := qt.New(t)

	parts := artifact.SplitTableBody(`id SERIAL PRIMARY KEY, amount NUMERIC(10,2) NOT NULL, CHECK (amount > 0 AND amount < 1000)`)
	c.Assert(parts, qt.HasLen, 3)
	c.Assert(parts[1], qt.Equals, "amount NUMERIC(10,2) NOT NULL")
}

func TestChecksumFormattingInsensitive(t *testing.T) {
	c := qt.New(t)

	sql1 := "CREATE TABLE users (id INT);"
	sql2 := "CREATE   TABLE   users   (id   INT);  -- trailing comment"
	sql3 := "create table users (id int);\n/* block comment */"

	c.Assert(artifact.Checksum(sql1), qt.Equals, artifact.Checksum(sql2))
	c.Assert(artifact.Checksum(sql1), qt.Equals, artifact.Checksum(sql3))
}

func TestParseColumns(t *testing.T) {
	c := qt.New(t)

	cols := artifact.ParseColumns(`id SERIAL PRIMARY KEY, email VARCHAR(255) NOT NULL, bio TEXT`)
	c.Assert(cols, qt.HasLen, 3)
	c.Assert(cols[0].PrimaryKey, qt.IsTrue)
	c.Assert(cols[1].Type, qt.Equals, "varchar(255)")
	c.Assert(cols[1].NotNull, qt.IsTrue)
	c.Assert(cols[2].NotNull, qt.IsFalse)
}
