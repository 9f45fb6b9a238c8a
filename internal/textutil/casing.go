package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleCase converts upper-case register values such as "LAND ROVER" to
// "Land Rover". Empty input stays empty.
func TitleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(value))
}
