// Package dbreader reads the live structure of a tenant database —
// tables, columns, custom types, extensions, and functions — from
// PostgreSQL's system catalogs, for comparison against the desired
// schema parsed by internal/artifact.
package dbreader

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

// trackingTablePrefix excludes the gateway's own bookkeeping tables
// from every live-schema read.
const trackingTablePrefix = "_stonescriptdb_gateway_"

// Column is one live column of a live table.
type Column struct {
	Name                   string
	DataType               string // upper-cased, e.g. "CHARACTER VARYING"
	IsNullable             bool
	ColumnDefault          *string
	CharacterMaximumLength *int32
	NumericPrecision       *int32
	NumericScale           *int32
}

// FullType renders the column's type the way internal/typematrix
// expects: base type plus an optional "(length)" or "(precision,scale)".
func (c Column) FullType() string {
	base := strings.ToUpper(c.DataType)

	if c.CharacterMaximumLength != nil {
		return fmt.Sprintf("%s(%d)", base, *c.CharacterMaximumLength)
	}
	if c.NumericPrecision != nil && c.NumericScale != nil && (base == "NUMERIC" || base == "DECIMAL") {
		return fmt.Sprintf("%s(%d,%d)", base, *c.NumericPrecision, *c.NumericScale)
	}
	return base
}

// Table is one live base table plus its columns, keyed by column name.
type Table struct {
	Name    string
	Columns map[string]Column
}

// EnumType is a live PostgreSQL enum type and its ordered labels.
type EnumType struct {
	Name   string
	Values []string
}

// Extension is a live installed extension.
type Extension struct {
	Name    string
	Version string
	Schema  string
}

// Function is a live user-defined function (its signature and body, for
// comparing against internal/artifact.FunctionSignature).
type Function struct {
	Name       string
	Arguments  string // pg_get_function_arguments output
	Returns    string
	Language   string
	Body       string
}

// Reader reads a tenant database's schema via its connection pool.
type Reader struct {
	pool     *pgxpool.Pool
	schema   string
	database string
}

// New returns a reader for the given pool, scoped to schema (defaults
// to "public").
func New(pool *pgxpool.Pool, database, schema string) *Reader {
	if schema == "" {
		schema = "public"
	}
	return &Reader{pool: pool, schema: schema, database: database}
}

// Tables reads every base table and its columns, excluding the
// gateway's own tracking tables.
func (r *Reader) Tables(ctx context.Context) (map[string]*Table, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			t.table_name, c.column_name, c.data_type, c.is_nullable,
			c.column_default, c.character_maximum_length,
			c.numeric_precision, c.numeric_scale
		FROM information_schema.tables t
		JOIN information_schema.columns c
			ON t.table_name = c.table_name AND t.table_schema = c.table_schema
		WHERE t.table_schema = $1
			AND t.table_type = 'BASE TABLE'
			AND t.table_name NOT LIKE $2
		ORDER BY t.table_name, c.ordinal_position`,
		r.schema, trackingTablePrefix+"%")
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying live tables").WithDatabase(r.database)
	}
	defer rows.Close()

	tables := make(map[string]*Table)
	for rows.Next() {
		var tableName, columnName, dataType, isNullableStr string
		var columnDefault *string
		var charMaxLen, numPrecision, numScale *int32

		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullableStr,
			&columnDefault, &charMaxLen, &numPrecision, &numScale); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning live column").WithDatabase(r.database)
		}

		table, ok := tables[tableName]
		if !ok {
			table = &Table{Name: tableName, Columns: map[string]Column{}}
			tables[tableName] = table
		}
		table.Columns[columnName] = Column{
			Name:                   columnName,
			DataType:               strings.ToUpper(dataType),
			IsNullable:             strings.EqualFold(isNullableStr, "YES"),
			ColumnDefault:          columnDefault,
			CharacterMaximumLength: charMaxLen,
			NumericPrecision:       numPrecision,
			NumericScale:           numScale,
		}
	}
	return tables, rows.Err()
}

// EnumTypes reads every enum type defined in the schema.
func (r *Reader) EnumTypes(ctx context.Context) ([]EnumType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON t.oid = e.enumtypid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder`, r.schema)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying live enum types").WithDatabase(r.database)
	}
	defer rows.Close()

	order := []string{}
	byName := map[string][]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning live enum label").WithDatabase(r.database)
		}
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = append(byName[name], value)
	}
	if err := rows.Err(); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "reading live enum types").WithDatabase(r.database)
	}

	enums := make([]EnumType, 0, len(order))
	for _, name := range order {
		enums = append(enums, EnumType{Name: name, Values: byName[name]})
	}
	return enums, nil
}

// CustomTypes reads the names of every enum, composite, or domain type
// defined in the schema (the three kinds internal/artifact recognizes
// as custom types).
func (r *Reader) CustomTypes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.typname
		FROM pg_type t
		JOIN pg_namespace n ON t.typnamespace = n.oid
		WHERE n.nspname = $1
			AND t.typtype IN ('e', 'c', 'd')
		ORDER BY t.typname`, r.schema)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying live custom types").WithDatabase(r.database)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning live custom type").WithDatabase(r.database)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Extensions reads every extension installed in the connected database,
// whatever schema it was installed into.
func (r *Reader) Extensions(ctx context.Context) ([]Extension, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.extname, e.extversion, n.nspname
		FROM pg_extension e
		JOIN pg_namespace n ON n.oid = e.extnamespace
		ORDER BY e.extname`)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying live extensions").WithDatabase(r.database)
	}
	defer rows.Close()

	var extensions []Extension
	for rows.Next() {
		var ext Extension
		if err := rows.Scan(&ext.Name, &ext.Version, &ext.Schema); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning live extension").WithDatabase(r.database)
		}
		extensions = append(extensions, ext)
	}
	return extensions, rows.Err()
}

// Functions reads every user-defined function in the schema, excluding
// functions owned by an extension (those are managed by CREATE
// EXTENSION and must not be treated as drift).
func (r *Reader) Functions(ctx context.Context) ([]Function, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			p.proname, pg_get_function_arguments(p.oid),
			pg_get_function_result(p.oid), l.lanname, p.prosrc
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		JOIN pg_language l ON l.oid = p.prolang
		WHERE n.nspname = $1
			AND p.prokind = 'f'
			AND l.lanname != 'internal'
			AND NOT EXISTS (
				SELECT 1 FROM pg_depend d
				JOIN pg_extension e ON e.oid = d.refobjid
				WHERE d.objid = p.oid AND d.deptype = 'e'
			)
		ORDER BY p.proname`, r.schema)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying live functions").WithDatabase(r.database)
	}
	defer rows.Close()

	var functions []Function
	for rows.Next() {
		var fn Function
		if err := rows.Scan(&fn.Name, &fn.Arguments, &fn.Returns, &fn.Language, &fn.Body); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning live function").WithDatabase(r.database)
		}
		functions = append(functions, fn)
	}
	return functions, rows.Err()
}

// TableExists reports whether name exists as a base table in the schema.
func (r *Reader) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2 AND table_type = 'BASE TABLE'
		)`, r.schema, name).Scan(&exists)
	if err != nil {
		return false, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "checking existence of table %s", name).WithDatabase(r.database)
	}
	return exists, nil
}

// RowCount returns the number of rows in table. Callers must ensure
// table is a trusted identifier (it is not interpolated from user
// input without validation upstream).
func (r *Reader) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(table))).Scan(&count)
	if err != nil {
		return 0, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "counting rows in %s", table).WithDatabase(r.database)
	}
	return count, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
