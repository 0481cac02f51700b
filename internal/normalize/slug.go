package normalize

import (
	"strings"
	"unicode"
)

// DefaultCategory is used when slugging produces an empty result.
const DefaultCategory = "general"

// Slug normalizes a free-text category label into a stable key:
// lowercase, diacritics stripped, non-word characters removed, spaces
// collapsed away. Empty output falls back to DefaultCategory.
func Slug(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r):
			b.WriteRune(r)
		case unicode.IsNumber(r):
			b.WriteRune(r)
		}
	}

	slug := b.String()
	if slug == "" {
		return DefaultCategory
	}
	return slug
}
