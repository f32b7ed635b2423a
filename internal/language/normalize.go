// Package language normalizes the BCP-47-style tags carried by
// interchange documents ("en-US", "zh-Hans", "es-419") into a canonical
// lowercase form used for storage and prompt construction.
package language

import "strings"

// NormalizeTag canonicalizes a language tag: lowercase, "-" separators,
// empty subtags collapsed. The primary subtag must be alphabetic; later
// subtags may be alphanumeric so region codes like "419" survive.
// Returns an empty string for blank or malformed input.
func NormalizeTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	subtags := make([]string, 0, 3)
	for _, subtag := range strings.Split(trimmed, "-") {
		subtag = strings.TrimSpace(subtag)
		if subtag == "" {
			continue
		}
		if len(subtags) == 0 && !isAlpha(subtag) {
			return ""
		}
		if !isAlphaNumeric(subtag) {
			return ""
		}
		subtags = append(subtags, subtag)
	}

	if len(subtags) == 0 {
		return ""
	}
	return strings.Join(subtags, "-")
}

// NormalizeCode returns the primary language subtag ("en" from "en-US").
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	if tag == "" {
		return ""
	}
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		return tag[:dash]
	}
	return tag
}

// SamePrimary reports whether two tags name the same language once
// region and script subtags are stripped. Either side failing to
// normalize compares as false.
func SamePrimary(a, b string) bool {
	codeA := NormalizeCode(a)
	codeB := NormalizeCode(b)
	return codeA != "" && codeA == codeB
}

func isAlpha(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func isAlphaNumeric(value string) bool {
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
