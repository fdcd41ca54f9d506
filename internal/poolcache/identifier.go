package poolcache

// IsValidIdentifier enforces the PostgreSQL-safe identifier grammar used
// for database names (and reused for function names at the /call
// boundary): non-empty, at most 63 characters, first character ASCII
// lowercase or underscore, remaining characters ASCII lowercase, digit,
// or underscore. Checked before any DDL string formatting since database
// names cannot be parameterized.
func IsValidIdentifier(s string) bool {
	if len(s) == 0 || len(s) > 63 {
		return false
	}
	first := s[0]
	if !(first >= 'a' && first <= 'z') && first != '_' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '_' {
			return false
		}
	}
	return true
}
