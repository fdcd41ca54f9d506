package dbreader_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/dbreader"
)

func int32ptr(v int32) *int32 { return &v }

func TestColumnFullType(t *testing.T) {
	c := qt.New(t)

	c.Assert(dbreader.Column{DataType: "integer"}.FullType(), qt.Equals, "INTEGER")

	varchar := dbreader.Column{DataType: "character varying", CharacterMaximumLength: int32ptr(100)}
	c.Assert(varchar.FullType(), qt.Equals, "CHARACTER VARYING(100)")

	numeric := dbreader.Column{DataType: "numeric", NumericPrecision: int32ptr(10), NumericScale: int32ptr(2)}
	c.Assert(numeric.FullType(), qt.Equals, "NUMERIC(10,2)")

	// numeric without scale/precision falls back to the bare base type
	bareNumeric := dbreader.Column{DataType: "numeric"}
	c.Assert(bareNumeric.FullType(), qt.Equals, "NUMERIC")
}
