package textutil

import "strings"

// SanitizeRegistration strips everything except letters and digits and
// upper-cases the result, so "ab12 cde" and "AB12-CDE" both become "AB12CDE".
func SanitizeRegistration(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePlate upper-cases a detected plate and collapses runs of whitespace
// to a single space while keeping the original grouping.
func NormalizePlate(value string) string {
	return strings.Join(strings.Fields(strings.ToUpper(value)), " ")
}
