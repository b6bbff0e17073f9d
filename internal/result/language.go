package result

import (
	"strings"

	"golang.org/x/text/language"
)

// CanonicalLanguage returns the BCP 47 form of a detected language code.
// Unparseable codes are passed through lower-cased; "und" maps to "".
func CanonicalLanguage(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return strings.ToLower(trimmed)
	}
	if tag == language.Und {
		return ""
	}
	return tag.String()
}
