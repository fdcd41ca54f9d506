package artifact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

// createTableRE locates "CREATE TABLE [IF NOT EXISTS] name (" and captures
// the table name; the matching close paren is then found by depth
// tracking rather than a regex, since the body may itself contain
// parenthesized expressions (NUMERIC(10,2), CHECK (...), etc).
var createTableRE = regexp.MustCompile(`(?is)create\s+table\s+(?:if\s+not\s+exists\s+)?"?([a-z0-9_]+)"?\s*\(`)

// ParseTableFile parses every CREATE TABLE statement in sql (normally a
// single statement per file) into TableDefinitions. A file containing no
// recognizable CREATE TABLE yields an empty, non-error result per the
// parser's tolerant-parsing contract.
func ParseTableFile(filePath, sql string) ([]TableDefinition, error) {
	var defs []TableDefinition

	locs := createTableRE.FindAllStringSubmatchIndex(sql, -1)
	for _, loc := range locs {
		name := strings.ToLower(sql[loc[2]:loc[3]])
		openParen := loc[1] - 1 // index of the "(" that starts the body
		closeParen, err := matchingParen(sql, openParen)
		if err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "unbalanced parentheses in CREATE TABLE %s in %s", name, filePath)
		}

		body := sql[openParen+1 : closeParen]
		fullStatement := sql[loc[0] : closeParen+1]

		deps, err := extractDependencies(body, name)
		if err != nil {
			return nil, err
		}

		defs = append(defs, TableDefinition{
			Name:      name,
			FilePath:  filePath,
			SQL:       strings.TrimSpace(fullStatement) + ";",
			Checksum:  Checksum(fullStatement),
			DependsOn: deps,
		})
	}

	return defs, nil
}

// matchingParen returns the index of the ")" that closes the "(" at
// open, skipping over parens nested inside single-quoted string literals.
func matchingParen(s string, open int) (int, error) {
	depth := 0
	inString := false
	for i := open; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\'' && !inString:
			inString = true
		case ch == '\'' && inString:
			inString = false
		case inString:
			continue
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("no matching close paren found starting at offset %d", open)
}

// SplitTableBody splits a CREATE TABLE body on top-level commas: a comma
// nested inside parentheses (NUMERIC(10,2), CHECK (a > 0 AND b < 1), a
// function call default) must never split a column/constraint
// definition. Quoted string literals are also respected so a comma
// inside a DEFAULT '...' expression is not mistaken for a separator.
func SplitTableBody(body string) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0

	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case ch == '\'':
			inString = !inString
		case inString:
			continue
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(body[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(body[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

var (
	tableLevelPKRE = regexp.MustCompile(`(?i)^primary\s+key\s*\(([^)]*)\)`)
	tableLevelFKRE = regexp.MustCompile(`(?is)^(?:constraint\s+"?[a-z0-9_]+"?\s+)?foreign\s+key\s*\(([^)]*)\)\s*references\s+"?([a-z0-9_]+)"?`)
	inlineRefRE    = regexp.MustCompile(`(?is)references\s+"?([a-z0-9_]+)"?`)
	onDeleteRE     = regexp.MustCompile(`(?is)on\s+delete\s+(cascade|restrict|set\s+null|set\s+default|no\s+action)`)
	onUpdateRE     = regexp.MustCompile(`(?is)on\s+update\s+(cascade|restrict|set\s+null|set\s+default|no\s+action)`)
	columnHeadRE   = regexp.MustCompile(`(?is)^"?([a-z0-9_]+)"?\s+([a-z0-9_]+(?:\s*\([^)]*\))?(?:\s+(?:with|without)\s+time\s+zone)?(?:\s+precision)?)`)
)

var tableLevelKeywords = []string{"primary key", "foreign key", "constraint", "unique", "check"}

func isTableLevelConstraint(entry string) bool {
	lower := strings.ToLower(strings.TrimSpace(entry))
	for _, kw := range tableLevelKeywords {
		if strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}

// extractDependencies walks the split column/constraint entries of a
// table body and returns the distinct set of table names referenced via
// REFERENCES clauses — inline on a column, or a table-level FOREIGN KEY.
func extractDependencies(body, selfName string) ([]string, error) {
	seen := map[string]bool{}
	var deps []string

	add := func(name string) {
		name = strings.ToLower(name)
		if name == "" || name == selfName || seen[name] {
			return
		}
		seen[name] = true
		deps = append(deps, name)
	}

	for _, entry := range SplitTableBody(body) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(entry), "primary key") {
			continue // table-level PK carries no FK dependency
		}
		if m := tableLevelFKRE.FindStringSubmatch(entry); m != nil {
			add(m[2])
			continue
		}
		if isTableLevelConstraint(entry) {
			continue // UNIQUE/CHECK/named CONSTRAINT without FK: no dependency
		}
		// Otherwise this is a column definition; look for an inline REFERENCES.
		if m := inlineRefRE.FindStringSubmatch(entry); m != nil {
			add(m[1])
		}
	}

	return deps, nil
}

// ColumnSpec is a parsed column definition used by the diff gate and
// verifier to compare desired vs. live schema.
type ColumnSpec struct {
	Name           string
	Type           string // full type text, e.g. "varchar(255)", "numeric(10,2)"
	NotNull        bool
	HasDefault     bool
	PrimaryKey     bool
	References     string // referenced table, empty if none
	OnDeleteAction string
	OnUpdateAction string
}

// ParseColumns extracts column-level detail (type, nullability, default
// presence, inline PK/FK) from a CREATE TABLE body, skipping table-level
// constraint entries. This is more thorough than strictly required for
// dependency extraction alone because the Diff Gate needs symmetric
// desired/live type information (see DESIGN.md Open Question 3).
func ParseColumns(body string) []ColumnSpec {
	var cols []ColumnSpec
	pkColumns := map[string]bool{}

	entries := SplitTableBody(body)
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if m := tableLevelPKRE.FindStringSubmatch(entry); m != nil {
			for _, c := range strings.Split(m[1], ",") {
				pkColumns[strings.ToLower(strings.Trim(strings.TrimSpace(c), `"`))] = true
			}
		}
	}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" || isTableLevelConstraint(entry) {
			continue
		}
		m := columnHeadRE.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		name := strings.ToLower(m[1])
		typ := normalizeTypeWhitespace(m[2])
		rest := strings.ToLower(entry[len(m[0]):])

		col := ColumnSpec{
			Name:       name,
			Type:       typ,
			NotNull:    strings.Contains(rest, "not null") || strings.Contains(rest, "primary key"),
			HasDefault: strings.Contains(rest, "default"),
			PrimaryKey: pkColumns[name] || strings.Contains(rest, "primary key"),
		}
		if ref := inlineRefRE.FindStringSubmatch(entry); ref != nil {
			col.References = strings.ToLower(ref[1])
			if od := onDeleteRE.FindStringSubmatch(entry); od != nil {
				col.OnDeleteAction = normalizeAction(od[1])
			}
			if ou := onUpdateRE.FindStringSubmatch(entry); ou != nil {
				col.OnUpdateAction = normalizeAction(ou[1])
			}
		}
		cols = append(cols, col)
	}

	return cols
}

func normalizeAction(a string) string {
	return strings.ToUpper(whitespaceRE.ReplaceAllString(strings.TrimSpace(a), " "))
}

func normalizeTypeWhitespace(t string) string {
	return strings.ToLower(whitespaceRE.ReplaceAllString(strings.TrimSpace(t), " "))
}
