// Package typematrix classifies PostgreSQL type transitions for the
// Migration Runner's diff gate and the post-migration verifier. It is a
// pure, side-effect-free function of two type strings — the single
// source of truth shared by both callers.
package typematrix

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Outcome is the result of classifying a type transition.
type Outcome string

const (
	Identical    Outcome = "Identical"
	Safe         Outcome = "Safe"
	DataLoss     Outcome = "DataLoss"
	Incompatible Outcome = "Incompatible"
)

// Result is the classification of a `from` -> `to` type transition, with
// a human-readable reason attached whenever the outcome is not Identical
// or an unconditional Safe.
type Result struct {
	Outcome Outcome
	Reason  string
}

func identical() Result { return Result{Outcome: Identical} }
func safe() Result       { return Result{Outcome: Safe} }
func dataLoss(format string, args ...any) Result {
	return Result{Outcome: DataLoss, Reason: fmt.Sprintf(format, args...)}
}
func incompatible(format string, args ...any) Result {
	return Result{Outcome: Incompatible, Reason: fmt.Sprintf(format, args...)}
}

var typeAliases = map[string]string{
	"int4":              "integer",
	"int8":              "bigint",
	"int2":              "smallint",
	"int":               "integer",
	"character varying": "varchar",
	"float4":            "real",
	"float8":            "double precision",
	"float":             "double precision",
	"bool":              "boolean",
	"decimal":           "numeric",
}

var (
	tzWithRE    = regexp.MustCompile(`^timestamp\s+with\s+time\s+zone$`)
	tzWithoutRE = regexp.MustCompile(`^timestamp\s+without\s+time\s+zone$`)
)

// normalize case-folds and expands aliases on the whole type string,
// before base/length extraction.
func normalize(t string) string {
	s := strings.ToLower(strings.TrimSpace(t))
	s = collapseSpace(s)
	if tzWithRE.MatchString(s) {
		return "timestamptz"
	}
	if tzWithoutRE.MatchString(s) {
		return "timestamp"
	}
	// Replace whole-token aliases only (avoid mangling e.g. "point4d").
	s = replaceToken(s, typeAliases)
	return s
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func replaceToken(s string, aliases map[string]string) string {
	base, rest := splitBaseRest(s)
	if canonical, ok := aliases[base]; ok {
		base = canonical
	}
	return base + rest
}

var baseRE = regexp.MustCompile(`^([a-z_ ]+?)(\(.*\))?$`)

func splitBaseRest(s string) (base, rest string) {
	m := baseRE.FindStringSubmatch(s)
	if m == nil {
		return s, ""
	}
	return strings.TrimSpace(m[1]), m[2]
}

var lengthRE = regexp.MustCompile(`\((\d+)\)`)
var precisionScaleRE = regexp.MustCompile(`\((\d+)\s*,\s*(\d+)\)`)

func extractBaseType(t string) string {
	base, _ := splitBaseRest(t)
	return base
}

func extractLength(t string) (int, bool) {
	if precisionScaleRE.MatchString(t) {
		return 0, false
	}
	m := lengthRE.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	n, _ := strconv.Atoi(m[1])
	return n, true
}

func extractPrecisionScale(t string) (p, s int, ok bool) {
	m := precisionScaleRE.FindStringSubmatch(t)
	if m == nil {
		return 0, 0, false
	}
	p, _ = strconv.Atoi(m[1])
	s, _ = strconv.Atoi(m[2])
	return p, s, true
}

// family ranks for the integer widening chain (rule 5) and serial types
// (rule 11), which are treated as their underlying integer type.
var integerRank = map[string]int{
	"smallint": 1, "smallserial": 1,
	"integer": 2, "serial": 2,
	"bigint": 3, "bigserial": 3,
	"numeric": 4,
}

var floatRank = map[string]int{
	"real": 1, "double precision": 2, "numeric": 3,
}

var stringTypes = map[string]bool{"varchar": true, "char": true, "text": true, "character": true}

func isUnboundedString(base string) bool {
	return base == "text"
}

// Check classifies the from -> to type transition per the gateway's
// ordered rule set (spec §4.2). Both inputs are full type strings as
// they appear in SQL, e.g. "VARCHAR(100)", "NUMERIC(10,2)", "BIGINT".
func Check(from, to string) Result {
	nf := normalize(from)
	nt := normalize(to)

	if nf == nt {
		return identical()
	}

	fromBase := extractBaseType(nf)
	toBase := extractBaseType(nt)

	// Rule 3: VARCHAR/CHAR length.
	if stringTypes[fromBase] && stringTypes[toBase] {
		return checkVarcharChange(nf, nt, fromBase, toBase)
	}

	// Rule 4: NUMERIC(p,s).
	if fromBase == "numeric" && toBase == "numeric" {
		return checkNumericChange(nf, nt)
	}

	// Rule 5: integer family widening (includes NUMERIC as a catch-all upper bound).
	if fr, ok1 := integerRank[fromBase]; ok1 {
		if tr, ok2 := integerRank[toBase]; ok2 {
			switch {
			case fr < tr:
				return safe()
			case fr > tr:
				return dataLoss("narrowing %s -> %s may overflow", fromBase, toBase)
			default:
				// Same rank, different base name: SERIAL/BIGSERIAL/SMALLSERIAL
				// are their underlying integer types (spec rule 11).
				return safe()
			}
		}
	}

	// Rule 6: floating family widening.
	if fr, ok1 := floatRank[fromBase]; ok1 {
		if tr, ok2 := floatRank[toBase]; ok2 {
			switch {
			case fr < tr:
				return safe()
			case fr > tr:
				return dataLoss("narrowing %s -> %s may lose precision", fromBase, toBase)
			}
		}
	}

	// Rule 7: DATE <-> TIMESTAMP(TZ).
	if fromBase == "date" && (toBase == "timestamp" || toBase == "timestamptz") {
		return safe()
	}
	if (fromBase == "timestamp" || fromBase == "timestamptz") && toBase == "date" {
		return dataLoss("%s -> date loses the time-of-day component", fromBase)
	}
	if fromBase == "timestamp" && toBase == "timestamptz" {
		return safe()
	}
	if fromBase == "timestamptz" && toBase == "timestamp" {
		return dataLoss("timestamptz -> timestamp loses time zone information")
	}

	// Rule 8: BOOLEAN <-> INTEGER family.
	if fromBase == "boolean" {
		if _, ok := integerRank[toBase]; ok {
			return safe()
		}
	}
	if _, ok := integerRank[fromBase]; ok && toBase == "boolean" {
		return dataLoss("integer -> boolean fails for any value outside {0,1}")
	}

	// Rule 9: UUID <-> TEXT/VARCHAR.
	if fromBase == "uuid" && (toBase == "text" || stringTypes[toBase]) {
		return safe()
	}
	if (fromBase == "text" || stringTypes[fromBase]) && toBase == "uuid" {
		return dataLoss("text -> uuid fails to parse for any non-UUID value")
	}

	// Rule 10: JSON <-> JSONB, either -> TEXT, TEXT -> JSON(B) is data-loss.
	if (fromBase == "json" || fromBase == "jsonb") && (toBase == "json" || toBase == "jsonb") {
		return safe()
	}
	if (fromBase == "json" || fromBase == "jsonb") && toBase == "text" {
		return safe()
	}
	if fromBase == "text" && (toBase == "json" || toBase == "jsonb") {
		return dataLoss("text -> %s fails to parse for any non-JSON value", toBase)
	}

	return incompatible("no known conversion from %s to %s", fromBase, toBase)
}

// checkVarcharChange implements rule 3: widening (including to
// unbounded VARCHAR/TEXT) is Safe; shrinking is DataLoss with lengths.
func checkVarcharChange(nf, nt, fromBase, toBase string) Result {
	fromLen, fromBounded := extractLength(nf)
	toLen, toBounded := extractLength(nt)

	if isUnboundedString(toBase) || !toBounded {
		return safe()
	}
	if !fromBounded {
		// from is unbounded (TEXT) or CHAR/VARCHAR with no explicit length
		// (effectively unbounded for VARCHAR) narrowing to a bounded type.
		return dataLoss("%s (unbounded) -> %s(%d) may truncate", fromBase, toBase, toLen)
	}
	if toLen >= fromLen {
		return safe()
	}
	return dataLoss("%s(%d) -> %s(%d) may truncate", fromBase, fromLen, toBase, toLen)
}

// checkNumericChange implements rule 4: both precision and scale must
// widen (or stay equal) for the change to be Safe.
func checkNumericChange(nf, nt string) Result {
	fp, fs, fok := extractPrecisionScale(nf)
	tp, ts, tok := extractPrecisionScale(nt)
	if !fok || !tok {
		// Unbounded NUMERIC on either side: treat as already maximal.
		if !tok {
			return safe()
		}
		return dataLoss("numeric (unbounded) -> numeric(%d,%d) may truncate", tp, ts)
	}
	if tp >= fp && ts >= fs {
		return safe()
	}
	return dataLoss("numeric(%d,%d) -> numeric(%d,%d) may truncate or overflow", fp, fs, tp, ts)
}

// IsSafe reports whether a change can be applied without confirmation.
func (r Result) IsSafe() bool {
	return r.Outcome == Identical || r.Outcome == Safe
}
