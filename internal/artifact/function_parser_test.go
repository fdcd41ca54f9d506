package artifact_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
)

func TestParseFunctionFileSignature(t *testing.T) {
	c := qt.New(t)

	sql := `
CREATE OR REPLACE FUNCTION get_user(p_id INT)
RETURNS TABLE(id INT, email TEXT) AS $$
BEGIN
    RETURN QUERY SELECT u.id, u.email FROM users u WHERE u.id = p_id;
END;
$$ LANGUAGE plpgsql;
`
	sig, ok := artifact.ParseFunctionFile("get_user.pssql", sql)
	c.Assert(ok, qt.IsTrue)
	c.Assert(sig.Name, qt.Equals, "get_user")
	c.Assert(sig.ParamTypes(), qt.DeepEquals, []string{"int"})
	c.Assert(sig.DropSignature(), qt.Equals, "get_user(int)")
}

func TestParseFunctionFileParamRename(t *testing.T) {
	c := qt.New(t)

	before, ok := artifact.ParseFunctionFile("f.pssql", "CREATE OR REPLACE FUNCTION get_user(p_id INT) RETURNS INT AS $$ BEGIN RETURN p_id; END; $$ LANGUAGE plpgsql;")
	c.Assert(ok, qt.IsTrue)

	after, ok := artifact.ParseFunctionFile("f.pssql", "CREATE OR REPLACE FUNCTION get_user(p_user_id INT) RETURNS INT AS $$ BEGIN RETURN p_user_id; END; $$ LANGUAGE plpgsql;")
	c.Assert(ok, qt.IsTrue)

	// Renaming a parameter does not change identity.
	c.Assert(before.DropSignature(), qt.Equals, after.DropSignature())
	// But the body checksum does change.
	c.Assert(before.BodyChecksum, qt.Not(qt.Equals), after.BodyChecksum)
}

func TestParseFunctionFileParamAdd(t *testing.T) {
	c := qt.New(t)

	sig, ok := artifact.ParseFunctionFile("f.pssql", "CREATE OR REPLACE FUNCTION get_user(p_id INT, p_include_deleted BOOLEAN DEFAULT FALSE) RETURNS INT AS $$ BEGIN RETURN p_id; END; $$ LANGUAGE plpgsql;")
	c.Assert(ok, qt.IsTrue)
	c.Assert(sig.ParamTypes(), qt.DeepEquals, []string{"int", "boolean"})
	c.Assert(sig.Parameters[1].HasDefault, qt.IsTrue)
	c.Assert(sig.DropSignature(), qt.Equals, "get_user(int, boolean)")
}

func TestParseFunctionFileUnnamedParam(t *testing.T) {
	c := qt.New(t)

	sig, ok := artifact.ParseFunctionFile("f.pssql", "CREATE FUNCTION add(INT, INT) RETURNS INT AS $$ SELECT $1 + $2; $$ LANGUAGE sql;")
	c.Assert(ok, qt.IsTrue)
	c.Assert(sig.ParamTypes(), qt.DeepEquals, []string{"int", "int"})
	c.Assert(sig.Parameters[0].Name, qt.Equals, "")
}

func TestParseFunctionFileNoMatch(t *testing.T) {
	c := qt.New(t)

	_, ok := artifact.ParseFunctionFile("weird.pssql", "DO $$ BEGIN RAISE NOTICE 'hi'; END $$;")
	c.Assert(ok, qt.IsFalse)
}
