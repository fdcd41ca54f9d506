package registry_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/registry"
)

func TestRegisterPlatform(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	reg := registry.NewPlatformRegistry(dir, nil)

	info, err := reg.Register("testapp")
	c.Assert(err, qt.IsNil)
	c.Assert(info.Name, qt.Equals, "testapp")
	c.Assert(info.Schemas, qt.HasLen, 0)

	_, err = reg.Register("testapp")
	c.Assert(err, qt.IsNotNil)
}

func TestInvalidPlatformName(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	reg := registry.NewPlatformRegistry(dir, nil)

	_, err := reg.Register("test-app")
	c.Assert(err, qt.IsNotNil)

	_, err = reg.Register("test app")
	c.Assert(err, qt.IsNotNil)

	_, err = reg.Register("")
	c.Assert(err, qt.IsNotNil)
}

func TestListPlatforms(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	reg := registry.NewPlatformRegistry(dir, nil)

	_, err := reg.Register("app_a")
	c.Assert(err, qt.IsNil)
	_, err = reg.Register("app_b")
	c.Assert(err, qt.IsNil)

	platforms, err := reg.List()
	c.Assert(err, qt.IsNil)
	c.Assert(platforms, qt.DeepEquals, []string{"app_a", "app_b"})
}

func TestAddSchemaAndRecordDatabase(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	reg := registry.NewPlatformRegistry(dir, nil)

	_, err := reg.Register("clinicapp")
	c.Assert(err, qt.IsNil)

	c.Assert(reg.AddSchema("clinicapp", "clinic"), qt.IsNil)
	c.Assert(reg.AddSchema("clinicapp", "clinic"), qt.IsNil) // idempotent

	c.Assert(reg.RecordDatabase("clinicapp", "clinic", "clinicapp_clinic_001"), qt.IsNil)

	info, err := reg.Get("clinicapp")
	c.Assert(err, qt.IsNil)
	c.Assert(info.Schemas, qt.DeepEquals, []string{"clinic"})
	c.Assert(info.Databases, qt.HasLen, 1)

	dbs, err := reg.ListDatabases("clinicapp", "clinic")
	c.Assert(err, qt.IsNil)
	c.Assert(dbs, qt.HasLen, 1)
	c.Assert(dbs[0].DatabaseName, qt.Equals, "clinicapp_clinic_001")

	noMatch, err := reg.ListDatabases("clinicapp", "other_schema")
	c.Assert(err, qt.IsNil)
	c.Assert(noMatch, qt.HasLen, 0)
}
