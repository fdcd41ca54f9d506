package artifact

import (
	"regexp"
	"strings"
)

// createFunctionRE locates "CREATE [OR REPLACE] FUNCTION name(" and
// captures the name; parameters and the remainder are parsed separately
// since the parameter list itself needs paren-depth-aware splitting
// (a parameter type like NUMERIC(10,2) must not be split early).
var createFunctionRE = regexp.MustCompile(`(?is)create\s+(?:or\s+replace\s+)?function\s+"?([a-z0-9_]+)"?\s*\(`)

var returnsRE = regexp.MustCompile(`(?is)\)\s*returns\s+(setof\s+)?([a-z0-9_]+(?:\s*\([^)]*\))?)`)

var paramModeRE = regexp.MustCompile(`(?i)^(in|out|inout)\s+`)

// ParseFunctionFile parses a single CREATE [OR REPLACE] FUNCTION artifact.
// If the file does not match the recognized shape, it returns (nil, false)
// so the caller can fall back to opaque batch execution — parsing is
// tolerant by design (spec §4.1), never a hard failure.
func ParseFunctionFile(filePath, sql string) (*FunctionSignature, bool) {
	loc := createFunctionRE.FindStringSubmatchIndex(sql)
	if loc == nil {
		return nil, false
	}

	name := strings.ToLower(sql[loc[2]:loc[3]])
	openParen := loc[1] - 1
	closeParen, err := matchingParen(sql, openParen)
	if err != nil {
		return nil, false
	}
	paramBody := sql[openParen+1 : closeParen]

	var params []Parameter
	for _, raw := range SplitTableBody(paramBody) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		params = append(params, parseParameter(raw))
	}

	returnType := ""
	if m := returnsRE.FindStringSubmatch(sql[closeParen:]); m != nil {
		prefix := ""
		if strings.TrimSpace(m[1]) != "" {
			prefix = "setof "
		}
		returnType = prefix + normalizeTypeWhitespace(m[2])
	}

	return &FunctionSignature{
		Name:         name,
		Parameters:   params,
		ReturnType:   returnType,
		BodyChecksum: Checksum(sql),
		FilePath:     filePath,
		SQL:          strings.TrimSpace(sql),
	}, true
}

// parseParameter parses one entry of a function parameter list:
// "[mode] [name] type [DEFAULT expr]". Mode keywords and a trailing
// DEFAULT clause are stripped before the type is extracted; an unnamed
// parameter (type only) is permitted.
func parseParameter(raw string) Parameter {
	p := Parameter{Mode: ModeIn}

	rest := raw
	if m := paramModeRE.FindStringSubmatch(rest); m != nil {
		switch strings.ToUpper(m[1]) {
		case "OUT":
			p.Mode = ModeOut
		case "INOUT":
			p.Mode = ModeInOut
		}
		rest = rest[len(m[0]):]
	}

	// Strip a DEFAULT (or "=") clause, noting its presence, before
	// splitting name from type so the expression's own tokens (which may
	// contain identifiers that look like types) never leak into Type.
	if idx := findDefaultClause(rest); idx >= 0 {
		p.HasDefault = true
		rest = rest[:idx]
	}
	rest = strings.TrimSpace(rest)

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return p
	}
	if len(fields) == 1 {
		// Unnamed parameter: type only.
		p.Type = normalizeTypeWhitespace(rest)
		return p
	}

	// With two or more fields the first is always taken as the name and
	// the rest as the type, so an unnamed multi-word type such as
	// "double precision" is read as name "double", type "precision".
	p.Name = strings.ToLower(fields[0])
	p.Type = normalizeTypeWhitespace(strings.Join(fields[1:], " "))
	return p
}

var defaultClauseRE = regexp.MustCompile(`(?i)\s+default\s+|\s*:=\s*|\s+=\s+`)

func findDefaultClause(s string) int {
	loc := defaultClauseRE.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}
