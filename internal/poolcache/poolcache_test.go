package poolcache_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/poolcache"
)

func TestFormatDatabaseName(t *testing.T) {
	c := qt.New(t)

	c.Assert(poolcache.FormatDatabaseName("medstoreapp", "clinic", "001"), qt.Equals, "medstoreapp_clinic_001")
	c.Assert(poolcache.FormatDatabaseName("medstoreapp", "", ""), qt.Equals, "medstoreapp_main")
	c.Assert(poolcache.FormatDatabaseName("MedStoreApp", "Clinic", ""), qt.Equals, "medstoreapp_clinic")
}

func TestFormatDatabaseNameIsValidIdentifier(t *testing.T) {
	c := qt.New(t)

	name := poolcache.FormatDatabaseName("medstoreapp", "clinic", "001")
	c.Assert(poolcache.IsValidIdentifier(name), qt.IsTrue)
}
