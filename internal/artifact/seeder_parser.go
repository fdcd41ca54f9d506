package artifact

import (
	"regexp"
	"strings"
)

var insertIntoRE = regexp.MustCompile(`(?is)insert\s+into\s+"?([a-z0-9_]+)"?\s*\(([^)]*)\)\s*values\s*`)

var stopClauseRE = regexp.MustCompile(`(?i)\bon\s+conflict\b|\bon\s+duplicate\s+key\b`)

// ParseSeederFile parses the first INSERT INTO ... VALUES statement in a
// seeder file into rows of pre-formatted literal values. Returns
// (nil, false) if no INSERT INTO is found, per the tolerant-parsing
// contract; seeders without a match are simply skipped by the deployer.
func ParseSeederFile(filePath, content string) (*Seeder, bool) {
	normalized := removeSeederComments(content)

	m := insertIntoRE.FindStringSubmatchIndex(normalized)
	if m == nil {
		return nil, false
	}

	table := strings.ToLower(normalized[m[2]:m[3]])
	colsRaw := normalized[m[4]:m[5]]
	var columns []string
	for _, c := range strings.Split(colsRaw, ",") {
		columns = append(columns, quotedIdent(c))
	}

	valuesSection := normalized[m[1]:]
	if loc := insertIntoRE.FindStringIndex(valuesSection); loc != nil {
		valuesSection = valuesSection[:loc[0]]
	}
	if loc := stopClauseRE.FindStringIndex(valuesSection); loc != nil {
		valuesSection = valuesSection[:loc[0]]
	}
	if idx := strings.LastIndex(valuesSection, ";"); idx >= 0 {
		valuesSection = valuesSection[:idx]
	}

	tuples := extractTuples(valuesSection)
	if len(tuples) == 0 {
		return nil, false
	}

	var rows []SeederRow
	for _, tuple := range tuples {
		values := parseValueTuple(tuple)
		rows = append(rows, SeederRow{Columns: columns, Values: values})
	}

	primaryKey := ""
	if len(columns) > 0 {
		primaryKey = columns[0]
	}

	return &Seeder{
		Table:      table,
		Rows:       rows,
		PrimaryKey: primaryKey,
		FilePath:   filePath,
	}, true
}

func removeSeederComments(content string) string {
	s := lineCommentRE.ReplaceAllString(content, "")
	s = blockCommentRE.ReplaceAllString(s, "")
	return s
}

// extractTuples pulls out each top-level "(...)" group from a VALUES
// list, respecting quotes so a literal containing ')' or ',' inside a
// string does not split a tuple prematurely.
func extractTuples(s string) []string {
	var tuples []string
	depth := 0
	inString := false
	var quote byte
	start := -1

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inString:
			if ch == quote {
				inString = false
			}
		case ch == '\'' || ch == '"':
			inString = true
			quote = ch
		case ch == '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ch == ')':
			depth--
			if depth == 0 && start >= 0 {
				tuples = append(tuples, s[start:i])
				start = -1
			}
		}
	}
	return tuples
}

// parseValueTuple splits one tuple's inner content on top-level commas,
// respecting both single- and double-quoted literals, then trims each
// resulting literal.
func parseValueTuple(tuple string) []string {
	var values []string
	depth := 0
	inString := false
	var quote byte
	start := 0

	for i := 0; i < len(tuple); i++ {
		ch := tuple[i]
		switch {
		case inString:
			if ch == quote {
				inString = false
			}
		case ch == '\'' || ch == '"':
			inString = true
			quote = ch
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			values = append(values, strings.TrimSpace(tuple[start:i]))
			start = i + 1
		}
	}
	values = append(values, strings.TrimSpace(tuple[start:]))
	return values
}
