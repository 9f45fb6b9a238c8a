package textutil

import (
	"regexp"
	"strings"
)

// wordSplitPattern matches runs of characters that separate words. Dots and
// hyphens are kept so engine sizes ("1.6") and names ("Mercedes-Benz") survive.
var wordSplitPattern = regexp.MustCompile(`[^a-z0-9.\-]+`)

// Words lowercases text and splits it into words, trimming stray punctuation.
func Words(text string) []string {
	raw := wordSplitPattern.Split(strings.ToLower(text), -1)
	words := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.Trim(token, ".-")
		if token == "" {
			continue
		}
		words = append(words, token)
	}
	return words
}
