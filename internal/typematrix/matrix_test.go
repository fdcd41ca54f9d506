package typematrix_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/typematrix"
)

func TestIdentical(t *testing.T) {
	c := qt.New(t)
	for _, ty := range []string{"VARCHAR(100)", "BIGINT", "NUMERIC(10,2)", "int4", "character varying(50)"} {
		c.Assert(typematrix.Check(ty, ty).Outcome, qt.Equals, typematrix.Identical)
	}
	// Alias normalization makes these identical too.
	c.Assert(typematrix.Check("int4", "INTEGER").Outcome, qt.Equals, typematrix.Identical)
	c.Assert(typematrix.Check("bool", "BOOLEAN").Outcome, qt.Equals, typematrix.Identical)
}

func TestVarcharWidening(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("VARCHAR(50)", "VARCHAR(100)").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("VARCHAR(100)", "TEXT").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("VARCHAR(255)", "VARCHAR(100)").Outcome, qt.Equals, typematrix.DataLoss)
}

func TestNumericWidening(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("NUMERIC(10,2)", "NUMERIC(12,2)").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("NUMERIC(10,2)", "NUMERIC(10,4)").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("NUMERIC(10,2)", "NUMERIC(8,2)").Outcome, qt.Equals, typematrix.DataLoss)
}

func TestIntegerFamily(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("SMALLINT", "INTEGER").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("INTEGER", "BIGINT").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("BIGINT", "INTEGER").Outcome, qt.Equals, typematrix.DataLoss)
	c.Assert(typematrix.Check("BIGINT", "NUMERIC(20,0)").Outcome, qt.Equals, typematrix.Safe)
}

// TestSerialTypes checks rule 11: SERIAL/BIGSERIAL/SMALLSERIAL are their
// underlying integer types, so a same-rank, different-name transition
// (as seen comparing a live information_schema report against an
// on-disk SERIAL column) must be non-destructive, not Incompatible.
func TestSerialTypes(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("INTEGER", "SERIAL").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("SERIAL", "INTEGER").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("BIGINT", "BIGSERIAL").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("BIGSERIAL", "BIGINT").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("SMALLINT", "SMALLSERIAL").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("SMALLSERIAL", "SMALLINT").Outcome, qt.Equals, typematrix.Safe)
}

// TestBareAliases checks the bare spellings INT/DECIMAL/FLOAT, which
// never appear in information_schema output but are routine in
// hand-authored schema files.
func TestBareAliases(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("INTEGER", "INT").Outcome, qt.Equals, typematrix.Identical)
	c.Assert(typematrix.Check("INT", "BIGINT").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("NUMERIC(10,2)", "DECIMAL(10,2)").Outcome, qt.Equals, typematrix.Identical)
	c.Assert(typematrix.Check("FLOAT", "DOUBLE PRECISION").Outcome, qt.Equals, typematrix.Identical)
}

func TestFloatFamily(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("REAL", "DOUBLE PRECISION").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("DOUBLE PRECISION", "REAL").Outcome, qt.Equals, typematrix.DataLoss)
}

func TestDateTime(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("DATE", "TIMESTAMP").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("TIMESTAMP", "DATE").Outcome, qt.Equals, typematrix.DataLoss)
	c.Assert(typematrix.Check("timestamp without time zone", "timestamp with time zone").Outcome, qt.Equals, typematrix.Safe)
}

func TestBooleanInteger(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("BOOLEAN", "INTEGER").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("INTEGER", "BOOLEAN").Outcome, qt.Equals, typematrix.DataLoss)
}

func TestUUIDText(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("UUID", "TEXT").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("TEXT", "UUID").Outcome, qt.Equals, typematrix.DataLoss)
}

func TestJSON(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("JSON", "JSONB").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("JSONB", "TEXT").Outcome, qt.Equals, typematrix.Safe)
	c.Assert(typematrix.Check("TEXT", "JSON").Outcome, qt.Equals, typematrix.DataLoss)
}

func TestIncompatible(t *testing.T) {
	c := qt.New(t)
	c.Assert(typematrix.Check("UUID", "INTEGER").Outcome, qt.Equals, typematrix.Incompatible)
}

// TestReverseInvariant checks spec's universal invariant 4: if
// check(A,B) = Safe then check(B,A) is in {DataLoss, Identical}.
func TestReverseInvariant(t *testing.T) {
	c := qt.New(t)

	pairs := [][2]string{
		{"SMALLINT", "INTEGER"},
		{"INTEGER", "BIGINT"},
		{"VARCHAR(50)", "VARCHAR(100)"},
		{"REAL", "DOUBLE PRECISION"},
		{"DATE", "TIMESTAMP"},
		{"BOOLEAN", "INTEGER"},
		{"UUID", "TEXT"},
		{"JSON", "TEXT"},
	}

	for _, p := range pairs {
		forward := typematrix.Check(p[0], p[1])
		c.Assert(forward.Outcome, qt.Equals, typematrix.Safe)

		reverse := typematrix.Check(p[1], p[0])
		c.Assert(reverse.Outcome == typematrix.DataLoss || reverse.Outcome == typematrix.Identical, qt.IsTrue,
			qt.Commentf("reverse(%s,%s) = %s, want DataLoss or Identical", p[1], p[0], reverse.Outcome))
	}
}
