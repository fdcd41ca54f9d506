package artifact

import (
	"path/filepath"
	"regexp"
	"strings"
)

var headerLineRE = regexp.MustCompile(`(?im)^--\s*([a-z]+)\s*:\s*(.+?)\s*$`)

// ParseExtensionFile derives an Extension descriptor from a file's base
// name and any "-- key: value" header comment lines recognized: version
// and schema. Extension files otherwise carry no body worth parsing; the
// raw SQL is the CREATE EXTENSION statement itself, usually synthesized
// rather than hand-written (see deployer/extensions.go).
func ParseExtensionFile(filePath, content string) Extension {
	base := filepath.Base(filePath)
	name := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	ext := Extension{Name: name, FilePath: filePath}
	for _, m := range headerLineRE.FindAllStringSubmatch(content, -1) {
		key := strings.ToLower(m[1])
		val := strings.TrimSpace(m[2])
		switch key {
		case "version":
			ext.Version = val
		case "schema":
			ext.Schema = val
		}
	}
	return ext
}

// quotedIdent strips surrounding double quotes if present, else lowercases.
func quotedIdent(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return strings.ToLower(s)
}
