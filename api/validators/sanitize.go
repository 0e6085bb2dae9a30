package validators

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input and cuts it to maxLen bytes without splitting a rune.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || len(trimmed) <= maxLen {
		return trimmed
	}
	cut := trimmed[:maxLen]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// SanitizeFileName keeps the base name of an uploaded file, drops control characters and
// bounds its length. The extension survives truncation since format detection relies on it.
func SanitizeFileName(name string, maxLen int) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '"' {
			return -1
		}
		return r
	}, base)

	if maxLen <= 0 || len(base) <= maxLen {
		return base
	}
	ext := filepath.Ext(base)
	if len(ext) >= maxLen {
		return SanitizeString(base, maxLen)
	}
	return SanitizeString(strings.TrimSuffix(base, ext), maxLen-len(ext)) + ext
}
