// Package verifier cross-checks a migrated database against its
// declarative schema — extensions, custom types, tables, and seeders —
// and produces a structured report of any drift.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/dbreader"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/migrate"
)

// ExtensionVerification compares the extensions the declarative schema
// expects against what is actually installed.
type ExtensionVerification struct {
	Expected []string
	Found    []string
	Missing  []string
}

// TypeVerification compares expected custom types against installed ones.
type TypeVerification struct {
	Expected []string
	Found    []string
	Missing  []string
}

// TableMismatch is one unsafe or incompatible drift found on a tracked table.
type TableMismatch struct {
	Table string
	Issue string
}

// TableVerification compares the desired table set against the live one.
type TableVerification struct {
	Expected   []string
	Found      []string
	Missing    []string
	Mismatches []TableMismatch
}

// MissingSeeder reports a seeder whose expected rows aren't fully present.
type MissingSeeder struct {
	Table string
	Count int
	Keys  []string
}

// SeederVerification lists every seeder with missing records.
type SeederVerification struct {
	Missing []MissingSeeder
}

// Result is the full structured report produced by VerifySchema.
type Result struct {
	Passed     bool
	Extensions ExtensionVerification
	Types      TypeVerification
	Tables     TableVerification
	Seeders    SeederVerification
}

// ErrorLog renders a human-readable drift report, matching the
// declarative-schema sections in the order they were checked.
func (r Result) ErrorLog() string {
	var b strings.Builder

	rule := strings.Repeat("=", 67)
	b.WriteString(rule + "\n")
	b.WriteString("              SCHEMA VERIFICATION FAILED\n")
	b.WriteString(rule + "\n\n")

	if len(r.Extensions.Missing) > 0 {
		b.WriteString("MISSING EXTENSIONS:\n")
		for _, ext := range r.Extensions.Missing {
			fmt.Fprintf(&b, "  - %s\n", ext)
		}
		b.WriteString("\n")
	}

	if len(r.Types.Missing) > 0 {
		b.WriteString("MISSING TYPES:\n")
		for _, t := range r.Types.Missing {
			fmt.Fprintf(&b, "  - %s\n", t)
		}
		b.WriteString("\n")
	}

	if len(r.Tables.Mismatches) > 0 {
		b.WriteString("TABLE SCHEMA MISMATCHES:\n")
		for _, m := range r.Tables.Mismatches {
			fmt.Fprintf(&b, "  - %s: %s\n", m.Table, m.Issue)
		}
		b.WriteString("\n")
	}

	if len(r.Tables.Missing) > 0 {
		b.WriteString("MISSING TABLES:\n")
		for _, t := range r.Tables.Missing {
			fmt.Fprintf(&b, "  - %s\n", t)
		}
		b.WriteString("\n")
	}

	if len(r.Seeders.Missing) > 0 {
		b.WriteString("MISSING SEEDER RECORDS:\n")
		for _, s := range r.Seeders.Missing {
			fmt.Fprintf(&b, "  - %s (%d missing records)\n", s.Table, s.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	b.WriteString("ACTION REQUIRED: add migration(s) to fix schema drift\n")
	b.WriteString(rule + "\n")

	return b.String()
}

// Dirs bundles the four declarative subdirectories VerifySchema reads.
type Dirs struct {
	Extensions string
	Types      string
	Tables     string
	Seeders    string
}

// Verifier runs the post-migration structural checks.
type Verifier struct {
	logger   *slog.Logger
	diffGate *migrate.DiffGate
}

// New returns a verifier.
func New(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{logger: logger, diffGate: migrate.NewDiffGate()}
}

// VerifySchema runs all four checks and aggregates them into Result.
func (v *Verifier) VerifySchema(ctx context.Context, pool *pgxpool.Pool, database string, dirs Dirs) (Result, error) {
	result := Result{Passed: true}

	v.logger.Debug("verifying extensions", "database", database)
	extVerification, err := v.verifyExtensions(ctx, pool, database, dirs.Extensions)
	if err != nil {
		return Result{}, err
	}
	result.Extensions = extVerification
	if len(extVerification.Missing) > 0 {
		result.Passed = false
	}

	v.logger.Debug("verifying types", "database", database)
	typeVerification, err := v.verifyTypes(ctx, pool, database, dirs.Types)
	if err != nil {
		return Result{}, err
	}
	result.Types = typeVerification
	if len(typeVerification.Missing) > 0 {
		result.Passed = false
	}

	v.logger.Debug("verifying tables", "database", database)
	tableVerification, err := v.verifyTables(ctx, pool, database, dirs.Tables)
	if err != nil {
		return Result{}, err
	}
	result.Tables = tableVerification
	if len(tableVerification.Missing) > 0 || len(tableVerification.Mismatches) > 0 {
		result.Passed = false
	}

	v.logger.Debug("verifying seeders", "database", database)
	seederVerification, err := v.verifySeeders(ctx, pool, database, dirs.Seeders)
	if err != nil {
		return Result{}, err
	}
	result.Seeders = seederVerification
	if len(seederVerification.Missing) > 0 {
		result.Passed = false
	}

	if result.Passed {
		v.logger.Info("schema verification passed", "database", database)
	} else {
		v.logger.Warn("schema verification failed", "database", database)
	}

	return result, nil
}

func scanArtifactDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading directory %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".pssql" && ext != ".pgsql" && ext != ".sql" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

func (v *Verifier) verifyExtensions(ctx context.Context, pool *pgxpool.Pool, database, extensionsDir string) (ExtensionVerification, error) {
	var verification ExtensionVerification

	files, err := scanArtifactDir(extensionsDir)
	if err != nil {
		return verification, err
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return verification, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading extension file %s", path)
		}
		ext := artifact.ParseExtensionFile(path, string(content))
		verification.Expected = append(verification.Expected, ext.Name)
	}

	reader := dbreader.New(pool, database, "")
	extensions, err := reader.Extensions(ctx)
	if err != nil {
		return verification, err
	}
	for _, e := range extensions {
		verification.Found = append(verification.Found, e.Name)
	}

	verification.Missing = missingFrom(verification.Expected, verification.Found)
	return verification, nil
}

func (v *Verifier) verifyTypes(ctx context.Context, pool *pgxpool.Pool, database, typesDir string) (TypeVerification, error) {
	var verification TypeVerification

	files, err := scanArtifactDir(typesDir)
	if err != nil {
		return verification, err
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return verification, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading type file %s", path)
		}
		if ct, ok := artifact.ParseTypeFile(path, string(content)); ok {
			verification.Expected = append(verification.Expected, ct.Name)
		}
	}

	reader := dbreader.New(pool, database, "")
	found, err := reader.CustomTypes(ctx)
	if err != nil {
		return verification, err
	}
	verification.Found = found

	verification.Missing = missingFrom(verification.Expected, verification.Found)
	return verification, nil
}

func (v *Verifier) verifyTables(ctx context.Context, pool *pgxpool.Pool, database, tablesDir string) (TableVerification, error) {
	var verification TableVerification

	desired, err := v.diffGate.ParseDesiredSchema(tablesDir)
	if err != nil {
		return verification, err
	}
	for name := range desired {
		verification.Expected = append(verification.Expected, name)
	}

	current, err := v.diffGate.QueryLiveSchema(ctx, pool, database)
	if err != nil {
		return verification, err
	}
	for name := range current {
		verification.Found = append(verification.Found, name)
	}

	for _, name := range verification.Expected {
		if _, exists := current[name]; !exists {
			verification.Missing = append(verification.Missing, name)
		}
	}

	diff := v.diffGate.Diff(desired, current)
	for _, change := range append(append([]migrate.Change{}, diff.DataLoss...), diff.Incompatible...) {
		verification.Mismatches = append(verification.Mismatches, TableMismatch{
			Table: change.Table,
			Issue: mismatchIssue(change),
		})
	}

	return verification, nil
}

func mismatchIssue(change migrate.Change) string {
	if change.Column == "" {
		return string(change.Kind)
	}
	from := change.FromType
	if from == "" {
		from = "-"
	}
	to := change.ToType
	if to == "" {
		to = "-"
	}
	return fmt.Sprintf("%s column '%s': %s -> %s", change.Kind, change.Column, from, to)
}

func (v *Verifier) verifySeeders(ctx context.Context, pool *pgxpool.Pool, database, seedersDir string) (SeederVerification, error) {
	var verification SeederVerification

	files, err := scanArtifactDir(seedersDir)
	if err != nil {
		return verification, err
	}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return verification, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading seeder file %s", path)
		}
		seeder, ok := artifact.ParseSeederFile(path, string(content))
		if !ok {
			continue
		}

		found, missingKeys, err := v.validateSeeder(ctx, pool, database, seeder)
		if err != nil {
			return verification, err
		}
		if found < len(seeder.Rows) {
			verification.Missing = append(verification.Missing, MissingSeeder{
				Table: seeder.Table,
				Count: len(seeder.Rows) - found,
				Keys:  missingKeys,
			})
		}
	}

	return verification, nil
}

// validateSeeder checks, row by row, that a record with the seeder's
// inferred primary key value exists in the target table. A row whose
// primary key column isn't present in that row's column list cannot be
// checked and is counted as found, matching the Rust original's
// "no PK defined, skip validation for this record" behavior.
func (v *Verifier) validateSeeder(ctx context.Context, pool *pgxpool.Pool, database string, seeder *artifact.Seeder) (int, []string, error) {
	found := 0
	var missing []string

	for _, row := range seeder.Rows {
		idx := -1
		for i, col := range row.Columns {
			if col == seeder.PrimaryKey {
				idx = i
				break
			}
		}
		if idx < 0 {
			found++
			continue
		}

		pkValue := row.Values[idx]
		checkSQL := fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = %s LIMIT 1`,
			quoteIdent(seeder.Table), quoteIdent(seeder.PrimaryKey), pkValue)

		var exists int
		err := pool.QueryRow(ctx, checkSQL).Scan(&exists)
		switch {
		case err == nil:
			found++
		case isNoRows(err):
			missing = append(missing, pkValue)
		default:
			return found, missing, gwerrors.Wrap(gwerrors.KindQueryFailed, err,
				"validating seeder record for %s", seeder.Table).WithDatabase(database)
		}
	}

	return found, missing, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func missingFrom(expected, found []string) []string {
	foundSet := make(map[string]bool, len(found))
	for _, f := range found {
		foundSet[f] = true
	}
	var missing []string
	for _, e := range expected {
		if !foundSet[e] {
			missing = append(missing, e)
		}
	}
	return missing
}
