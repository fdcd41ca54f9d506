package httpapi

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestIsValidFunctionName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"get_patient_by_id", true},
		{"list_appointments", true},
		{"_internal_fn", true},
		{"", false},
		{"DROP TABLE users; --", false},
		{"Get_Patient", false},
		{"123_fn", false},
	}

	for _, tc := range tests {
		c := qt.New(t)
		c.Assert(isValidFunctionName(tc.name), qt.Equals, tc.ok, qt.Commentf("name=%q", tc.name))
	}
}

func TestJSONToSQLLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"null", `null`, "NULL"},
		{"true", `true`, "true"},
		{"false", `false`, "false"},
		{"integer", `42`, "42"},
		{"float", `3.14`, "3.14"},
		{"string", `"hello"`, "'hello'"},
		{"string with quote", `"o'brien"`, "'o''brien'"},
		{"array", `[1,2,3]`, "'[1,2,3]'::jsonb"},
		{"object", `{"a":1}`, "'{\"a\":1}'::jsonb"},
	}

	for _, tc := range tests {
		c := qt.New(t)
		got, err := jsonToSQLLiteral(json.RawMessage(tc.in))
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, tc.want)
	}
}
