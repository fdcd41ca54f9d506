package registry_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/registry"
)

func buildTestArchive(c *qt.C) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	files := map[string]string{
		"postgresql/tables/users.pssql":     "CREATE TABLE users (id SERIAL PRIMARY KEY);",
		"postgresql/functions/test.pssql":   "CREATE FUNCTION test() RETURNS void AS $$ BEGIN END; $$ LANGUAGE plpgsql;",
	}
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		c.Assert(tw.WriteHeader(hdr), qt.IsNil)
		_, err := tw.Write([]byte(content))
		c.Assert(err, qt.IsNil)
	}

	c.Assert(tw.Close(), qt.IsNil)
	c.Assert(gz.Close(), qt.IsNil)
	return buf.Bytes()
}

func TestStoreSchema(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	store := registry.NewSchemaStore(dir, nil)

	archive := buildTestArchive(c)
	schema, err := store.Store("testapp", "tenant_db", archive)
	c.Assert(err, qt.IsNil)

	c.Assert(schema.Name, qt.Equals, "tenant_db")
	c.Assert(schema.HasTables, qt.IsTrue)
	c.Assert(schema.HasFunctions, qt.IsTrue)
	c.Assert(schema.HasMigrations, qt.IsFalse)
	c.Assert(schema.Checksum, qt.Not(qt.Equals), "")
}

func TestListSchemas(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	store := registry.NewSchemaStore(dir, nil)

	archive := buildTestArchive(c)
	_, err := store.Store("testapp", "main_db", archive)
	c.Assert(err, qt.IsNil)
	_, err = store.Store("testapp", "tenant_db", archive)
	c.Assert(err, qt.IsNil)

	schemas, err := store.List("testapp")
	c.Assert(err, qt.IsNil)
	c.Assert(schemas, qt.DeepEquals, []string{"main_db", "tenant_db"})
}

func TestStoreSchemaRejectsEscapingPath(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	store := registry.NewSchemaStore(dir, nil)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := "CREATE TABLE x();"
	hdr := &tar.Header{Name: "postgresql/../../etc/passwd", Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
	c.Assert(tw.WriteHeader(hdr), qt.IsNil)
	_, err := tw.Write([]byte(content))
	c.Assert(err, qt.IsNil)
	c.Assert(tw.Close(), qt.IsNil)
	c.Assert(gz.Close(), qt.IsNil)

	_, err = store.Store("testapp", "evil", buf.Bytes())
	c.Assert(err, qt.IsNotNil)
}
