package parser

import (
	"html"
	"strings"
	"unicode"
)

// NormalizeText collapses every whitespace run to a single space and trims the result.
func NormalizeText(value string) string {
	return strings.TrimSpace(collapseSpaces(value))
}

// Truncate cuts value to at most limit runes.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}

	count := 0
	for idx := range value {
		if count == limit {
			return value[:idx]
		}
		count++
	}

	return value
}

func cleanHumanText(value string) string {
	unescaped := html.UnescapeString(value)

	return NormalizeText(unescaped)
}

func collapseSpaces(value string) string {
	var builder strings.Builder
	builder.Grow(len(value))

	previousSpace := false
	for _, r := range value {
		if unicode.IsSpace(r) {
			if previousSpace {
				continue
			}

			builder.WriteRune(' ')
			previousSpace = true

			continue
		}

		builder.WriteRune(r)
		previousSpace = false
	}

	return builder.String()
}
