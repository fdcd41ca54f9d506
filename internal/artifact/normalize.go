package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	lineCommentRE  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRE = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRE   = regexp.MustCompile(`\s+`)

	lowerCaser = cases.Lower(language.Und)
)

// Normalize strips single-line and block comments, collapses all
// whitespace runs to a single space, trims, and lowercases. Every
// checksum in the system is computed over this normalized form so that
// two textually different but semantically identical artifacts checksum
// identically (spec invariant: formatting-insensitive idempotence).
func Normalize(sql string) string {
	s := lineCommentRE.ReplaceAllString(sql, "")
	s = blockCommentRE.ReplaceAllString(s, "")
	s = whitespaceRE.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return lowerCaser.String(s)
}

// Checksum returns the hex-encoded SHA-256 of the normalized text.
func Checksum(sql string) string {
	sum := sha256.Sum256([]byte(Normalize(sql)))
	return hex.EncodeToString(sum[:])
}
