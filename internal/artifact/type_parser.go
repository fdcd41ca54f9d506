package artifact

import (
	"regexp"
	"strings"
)

var (
	createEnumRE      = regexp.MustCompile(`(?is)create\s+type\s+"?([a-z0-9_]+)"?\s+as\s+enum\b`)
	createCompositeRE = regexp.MustCompile(`(?is)create\s+type\s+"?([a-z0-9_]+)"?\s+as\s*\(`)
	createDomainRE    = regexp.MustCompile(`(?is)create\s+domain\s+"?([a-z0-9_]+)"?\b`)
)

// ParseTypeFile parses a CREATE TYPE ... AS ENUM, CREATE TYPE ... AS
// (composite), or CREATE DOMAIN artifact. Returns (nil, false) for any
// other shape, in keeping with the parser's tolerant-parsing contract.
func ParseTypeFile(filePath, sql string) (*CustomType, bool) {
	if m := createEnumRE.FindStringSubmatch(sql); m != nil {
		return &CustomType{Name: strings.ToLower(m[1]), Kind: TypeKindEnum, SQL: strings.TrimSpace(sql), Checksum: Checksum(sql), FilePath: filePath}, true
	}
	if m := createDomainRE.FindStringSubmatch(sql); m != nil {
		return &CustomType{Name: strings.ToLower(m[1]), Kind: TypeKindDomain, SQL: strings.TrimSpace(sql), Checksum: Checksum(sql), FilePath: filePath}, true
	}
	if m := createCompositeRE.FindStringSubmatch(sql); m != nil {
		return &CustomType{Name: strings.ToLower(m[1]), Kind: TypeKindComposite, SQL: strings.TrimSpace(sql), Checksum: Checksum(sql), FilePath: filePath}, true
	}
	return nil, false
}
