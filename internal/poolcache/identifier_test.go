package poolcache_test

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/poolcache"
)

func TestIsValidIdentifier(t *testing.T) {
	c := qt.New(t)

	valid := []string{"medstoreapp_main", "medstoreapp_clinic_001", "_test"}
	for _, v := range valid {
		c.Assert(poolcache.IsValidIdentifier(v), qt.IsTrue, qt.Commentf("%s should be valid", v))
	}

	invalid := []string{"", "DROP TABLE", "1_test", "Test_DB", strings.Repeat("a", 64)}
	for _, v := range invalid {
		c.Assert(poolcache.IsValidIdentifier(v), qt.IsFalse, qt.Commentf("%s should be invalid", v))
	}
}
