package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/dbreader"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/typematrix"
)

// ChangeKind classifies the shape of a schema change, independent of
// its compatibility.
type ChangeKind string

const (
	ChangeCreateTable          ChangeKind = "create_table"
	ChangeDropTable            ChangeKind = "drop_table"
	ChangeAddColumn            ChangeKind = "add_column"
	ChangeDropColumn           ChangeKind = "drop_column"
	ChangeModifyColumnType     ChangeKind = "modify_column_type"
	ChangeModifyColumnNullable ChangeKind = "modify_column_nullable"
)

// Change is a single detected schema change between the desired and
// live schema.
type Change struct {
	Table    string
	Kind     ChangeKind
	Column   string
	FromType string
	ToType   string
	Outcome  typematrix.Outcome
	Reason   string
}

// Diff groups detected changes by their compatibility outcome.
type Diff struct {
	Safe         []Change
	DataLoss     []Change
	Incompatible []Change
}

// IsSafe reports whether the diff contains no DataLoss or Incompatible
// changes.
func (d Diff) IsSafe() bool {
	return len(d.DataLoss) == 0 && len(d.Incompatible) == 0
}

// HasChanges reports whether any change, of any compatibility, was found.
func (d Diff) HasChanges() bool {
	return len(d.Safe) > 0 || len(d.DataLoss) > 0 || len(d.Incompatible) > 0
}

func (d *Diff) add(c Change) {
	switch c.Outcome {
	case typematrix.Safe, typematrix.Identical:
		if c.Outcome == typematrix.Safe {
			d.Safe = append(d.Safe, c)
		}
	case typematrix.DataLoss:
		d.DataLoss = append(d.DataLoss, c)
	case typematrix.Incompatible:
		d.Incompatible = append(d.Incompatible, c)
	}
}

// DesiredColumn is the subset of column information the Diff Gate can
// recover from a parsed, not-yet-deployed table definition.
type DesiredColumn struct {
	name       string
	fullType   string
	nullable   bool
	hasDefault bool
}

// DesiredTable is a parsed table's columns keyed by name.
type DesiredTable struct {
	name    string
	columns map[string]DesiredColumn
}

// DiffGate computes the desired-vs-live schema diff and decides
// whether a migration run may proceed.
type DiffGate struct{}

// NewDiffGate returns a diff gate.
func NewDiffGate() *DiffGate { return &DiffGate{} }

// ParseDesiredSchema parses every table file under tablesDir into the
// desired-schema shape the diff needs. A missing directory yields an
// empty (not erroring) result, matching spec.md's "no tables → skip
// validation" behavior.
func (g *DiffGate) ParseDesiredSchema(tablesDir string) (map[string]DesiredTable, error) {
	tables := map[string]DesiredTable{}

	entries, err := os.ReadDir(tablesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return tables, nil
		}
		return nil, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading tables directory %s", tablesDir)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".pssql" && ext != ".pgsql" && ext != ".sql" {
			continue
		}

		path := filepath.Join(tablesDir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading table file %s", e.Name())
		}

		defs, err := artifact.ParseTableFile(path, string(content))
		if err != nil {
			continue
		}

		for _, def := range defs {
			cols := map[string]DesiredColumn{}
			for _, c := range artifact.ParseColumns(bodyOf(def)) {
				cols[c.Name] = DesiredColumn{
					name:       c.Name,
					fullType:   strings.ToUpper(c.Type),
					nullable:   !c.NotNull,
					hasDefault: c.HasDefault,
				}
			}
			tables[def.Name] = DesiredTable{name: def.Name, columns: cols}
		}
	}

	return tables, nil
}

// bodyOf extracts the parenthesized column-definition body from a
// table definition's full CREATE TABLE statement, since TableDefinition
// stores the complete statement for checksumming purposes.
func bodyOf(def artifact.TableDefinition) string {
	open := strings.Index(def.SQL, "(")
	close := strings.LastIndex(def.SQL, ")")
	if open < 0 || close < 0 || close <= open {
		return ""
	}
	return def.SQL[open+1 : close]
}

// QueryLiveSchema reads the live table/column shape from the database.
func (g *DiffGate) QueryLiveSchema(ctx context.Context, pool *pgxpool.Pool, database string) (map[string]*dbreader.Table, error) {
	reader := dbreader.New(pool, database, "")
	return reader.Tables(ctx)
}

// Diff compares desired against current and classifies every change.
func (g *DiffGate) Diff(desired map[string]DesiredTable, current map[string]*dbreader.Table) Diff {
	var diff Diff

	for name, desiredTbl := range desired {
		currentTbl, exists := current[name]
		if !exists {
			diff.add(Change{Table: name, Kind: ChangeCreateTable, Outcome: typematrix.Safe})
			continue
		}
		g.diffColumns(&diff, name, desiredTbl, currentTbl)
	}

	for name := range current {
		if _, exists := desired[name]; !exists {
			diff.add(Change{
				Table: name, Kind: ChangeDropTable,
				Outcome: typematrix.DataLoss, Reason: "dropping table will delete all data",
			})
		}
	}

	return diff
}

func (g *DiffGate) diffColumns(diff *Diff, table string, desired DesiredTable, current *dbreader.Table) {
	for colName, desiredCol := range desired.columns {
		currentCol, exists := current.Columns[colName]
		if !exists {
			outcome := typematrix.Safe
			reason := ""
			if !desiredCol.nullable && !desiredCol.hasDefault {
				outcome = typematrix.DataLoss
				reason = "adding NOT NULL column without DEFAULT requires data migration"
			}
			diff.add(Change{
				Table: table, Kind: ChangeAddColumn, Column: colName,
				ToType: desiredCol.fullType, Outcome: outcome, Reason: reason,
			})
			continue
		}

		g.diffColumnType(diff, table, colName, desiredCol, currentCol)

		if desiredCol.nullable != currentCol.IsNullable {
			outcome := typematrix.Safe
			reason := ""
			if !desiredCol.nullable {
				outcome = typematrix.DataLoss
				reason = "may fail if NULL values exist"
			}
			diff.add(Change{
				Table: table, Kind: ChangeModifyColumnNullable, Column: colName,
				FromType: nullableLabel(currentCol.IsNullable), ToType: nullableLabel(desiredCol.nullable),
				Outcome: outcome, Reason: reason,
			})
		}
	}

	for colName, currentCol := range current.Columns {
		if _, exists := desired.columns[colName]; !exists {
			diff.add(Change{
				Table: table, Kind: ChangeDropColumn, Column: colName,
				FromType: currentCol.FullType(), Outcome: typematrix.DataLoss,
				Reason: "dropping column will delete all data in that column",
			})
		}
	}
}

func (g *DiffGate) diffColumnType(diff *Diff, table, column string, desired DesiredColumn, current dbreader.Column) {
	result := typematrix.Check(current.FullType(), desired.fullType)
	if result.Outcome == typematrix.Identical {
		return
	}
	diff.add(Change{
		Table: table, Kind: ChangeModifyColumnType, Column: column,
		FromType: current.FullType(), ToType: desired.fullType,
		Outcome: result.Outcome, Reason: result.Reason,
	})
}

func nullableLabel(nullable bool) string {
	if nullable {
		return "NULLABLE"
	}
	return "NOT NULL"
}

// Validate parses the desired schema, queries the live schema, and
// rejects the migration (unless force) if any DataLoss/Incompatible
// change is present.
func (g *DiffGate) Validate(ctx context.Context, pool *pgxpool.Pool, database, tablesDir string, force bool) (Diff, error) {
	desired, err := g.ParseDesiredSchema(tablesDir)
	if err != nil {
		return Diff{}, err
	}
	if len(desired) == 0 {
		return Diff{}, nil
	}

	current, err := g.QueryLiveSchema(ctx, pool, database)
	if err != nil {
		return Diff{}, err
	}

	diff := g.Diff(desired, current)

	if !diff.IsSafe() && !force {
		var reasons []string
		for _, c := range diff.DataLoss {
			reasons = append(reasons, fmt.Sprintf("%s %s.%s: %s", c.Kind, c.Table, orStar(c.Column), orDash(c.Reason)))
		}
		for _, c := range diff.Incompatible {
			reasons = append(reasons, fmt.Sprintf("%s %s.%s: %s", c.Kind, c.Table, orStar(c.Column), orDash(c.Reason)))
		}
		return diff, gwerrors.New(gwerrors.KindMigrationFailed,
			"migration rejected: %d unsafe change(s) detected: %s", len(reasons), strings.Join(reasons, "; ")).WithDatabase(database)
	}

	return diff, nil
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "potential data loss"
	}
	return s
}
