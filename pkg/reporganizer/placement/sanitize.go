package placement

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxNameLength bounds a sanitized player name, in characters.
	MaxNameLength = 20
	// Placeholder replaces a name with nothing usable left in it.
	Placeholder = "unicode name"
)

// forbiddenChars are removed from every field that ends up in a path:
// quotes, colons and line breaks, plus the rest of the characters Windows
// rejects in file names.
const forbiddenChars = "'\":\r\n/\\*?<>|"

// SanitizeName turns a player nickname into a safe folder and file name
// component. The name is cut to MaxNameLength before forbidden characters
// are stripped, so a stripped name can come out shorter.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return Placeholder
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	name = SanitizeField(name)
	// Windows refuses names ending in a space or dot.
	name = strings.TrimRight(name, " .")
	if name == "" {
		return Placeholder
	}
	return name
}

// SanitizeField strips forbidden characters and surrounding whitespace
// from a field without shortening it.
func SanitizeField(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenChars, r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
