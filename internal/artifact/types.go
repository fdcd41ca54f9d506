// Package artifact parses the SQL files that make up a declarative schema
// bundle (tables, functions, custom types, extensions, seeders) into
// typed descriptors with a stable, formatting-insensitive checksum.
package artifact

// TableDefinition is a parsed CREATE TABLE artifact.
type TableDefinition struct {
	Name       string
	FilePath   string
	SQL        string // trimmed, original text
	Checksum   string // SHA-256 over the normalized text
	DependsOn  []string
}

// ParameterMode is a PostgreSQL function parameter mode.
type ParameterMode string

const (
	ModeIn    ParameterMode = "IN"
	ModeOut   ParameterMode = "OUT"
	ModeInOut ParameterMode = "INOUT"
)

// Parameter is one entry in a FunctionSignature's parameter list.
type Parameter struct {
	Name       string // optional; empty if unnamed
	Type       string // PostgreSQL-visible type, normalized
	Mode       ParameterMode
	HasDefault bool
}

// FunctionSignature is a parsed CREATE [OR REPLACE] FUNCTION artifact.
type FunctionSignature struct {
	Name         string
	Parameters   []Parameter
	ReturnType   string
	BodyChecksum string
	FilePath     string
	SQL          string
}

// ParamTypes returns the ordered list of parameter types used
// as part of the function's identity. OUT parameters are excluded since
// PostgreSQL does not use them to resolve overloads.
func (f FunctionSignature) ParamTypes() []string {
	types := make([]string, 0, len(f.Parameters))
	for _, p := range f.Parameters {
		if p.Mode == ModeOut {
			continue
		}
		types = append(types, p.Type)
	}
	return types
}

// DropSignature returns "name(type, type, ...)" — the identity PostgreSQL
// uses for DROP FUNCTION, independent of parameter names, modes (other
// than OUT, which it already excludes from ParamTypes), or defaults.
func (f FunctionSignature) DropSignature() string {
	return f.Name + "(" + joinComma(f.ParamTypes()) + ")"
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// CustomTypeKind classifies a custom type definition.
type CustomTypeKind string

const (
	TypeKindEnum      CustomTypeKind = "enum"
	TypeKindComposite CustomTypeKind = "composite"
	TypeKindDomain    CustomTypeKind = "domain"
)

// CustomType is a parsed CREATE TYPE / CREATE DOMAIN artifact.
type CustomType struct {
	Name     string
	Kind     CustomTypeKind
	SQL      string
	Checksum string
	FilePath string
}

// Extension is a parsed extension descriptor. Name comes from the file
// name; Version/Schema are optional and parsed from "-- key: value"
// header comment lines.
type Extension struct {
	Name     string
	Version  string // empty if unspecified
	Schema   string // empty if unspecified
	FilePath string
}

// SeederRow is one VALUES tuple from a seeder's INSERT statement.
type SeederRow struct {
	Columns []string
	Values  []string // pre-formatted SQL literals, verbatim from the file
}

// Seeder is a parsed seeder artifact: literal rows to insert into one
// table, once, if that table is currently empty.
type Seeder struct {
	Table      string
	Rows       []SeederRow
	PrimaryKey string // first column of the first row, per spec
	FilePath   string
}
