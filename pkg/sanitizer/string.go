package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizePurpose is applied before the purpose takes part in duplicate
// detection, so only whitespace differences are folded.
func NormalizePurpose(purpose string) string {
	return TrimAndNormalize(purpose)
}

func NormalizeNotes(notes string) string {
	return strings.TrimSpace(notes)
}

func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
