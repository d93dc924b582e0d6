package utils

import (
	"regexp"
	"strings"
)

// searchTermPattern keeps Latin and Arabic-script letters, digits, whitespace,
// hyphen and underscore; everything else becomes a space before the term is
// sent to the catalog search endpoint.
var searchTermPattern = regexp.MustCompile(`[^0-9A-Za-z\x{0600}-\x{06FF}\s\-_]`)

const maxSearchTermLen = 80

// SanitizeSearchTerm cleans free text for use as a catalog search parameter.
func SanitizeSearchTerm(s string) string {
	cleaned := searchTermPattern.ReplaceAllString(s, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if len(cleaned) > maxSearchTermLen {
		cleaned = cleaned[:maxSearchTermLen]
	}
	return strings.TrimSpace(cleaned)
}

// ContainsFold reports whether substr occurs in s, case-insensitively.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// HintMatches reports whether the hint appears as a case-insensitive substring
// of the product name or any attribute value.
func HintMatches(hint, name string, attributes map[string]string) bool {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return false
	}
	if ContainsFold(name, hint) {
		return true
	}
	for k, v := range attributes {
		if ContainsFold(k, hint) || ContainsFold(v, hint) {
			return true
		}
	}
	return false
}

// PersianThousands inserts the Persian thousands separator (U+066C) into the
// leading digit run of s, e.g. "1000000 تومان" -> "1٬000٬000 تومان".
func PersianThousands(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end <= 3 {
		return s
	}
	digits := s[:end]
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString("٬")
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String() + s[end:]
}
