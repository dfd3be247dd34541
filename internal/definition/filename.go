package definition

import (
	"strings"
	"unicode"

	"dune-sync/internal/domain"
)

// Filename convention: {base}___{query_id}.sql once bound, {base}.sql before.
const (
	Extension = ".sql"
	Separator = "___"
)

// IsDefinitionFile reports whether name looks like a query definition file.
// Hidden files are ignored.
func IsDefinitionFile(name string) bool {
	return strings.HasSuffix(name, Extension) && !strings.HasPrefix(name, ".") && len(name) > len(Extension)
}

// ParseFilename splits a definition filename into its base name and bound id.
// The id is the text between the last separator and the extension. A stem
// containing the separator is Malformed unless the suffix is the canonical
// decimal form of a positive id, so "x___007.sql" never binds to 7.
func ParseFilename(name string) (string, domain.QueryID, domain.BindingStatus) {
	stem := strings.TrimSuffix(name, Extension)
	i := strings.LastIndex(stem, Separator)
	if i < 0 {
		return stem, 0, domain.Unbound
	}

	base, suffix := stem[:i], stem[i+len(Separator):]
	if !isDigits(suffix) {
		return base, 0, domain.Malformed
	}
	id, err := domain.ParseQueryID(suffix)
	if err != nil || suffix != id.String() {
		return base, 0, domain.Malformed
	}
	return base, id, domain.Bound
}

// FormatFilename is the inverse of ParseFilename for bound files.
func FormatFilename(base string, id domain.QueryID) string {
	return base + Separator + id.String() + Extension
}

// DisplayName derives the remote query name from a base name. Underscores
// become spaces; a letter that follows a non-letter is upper-cased and every
// other letter lower-cased, so "l2beat_tvl" becomes "L2Beat Tvl".
func DisplayName(base string) string {
	var b strings.Builder
	b.Grow(len(base))
	prevLetter := false
	for _, r := range base {
		switch {
		case r == '_':
			r = ' '
		case unicode.IsLetter(r) && prevLetter:
			r = unicode.ToLower(r)
		case unicode.IsLetter(r):
			r = unicode.ToTitle(r)
		}
		prevLetter = unicode.IsLetter(r)
		b.WriteRune(r)
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
