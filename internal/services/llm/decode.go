package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeLLMJSON decodes the first JSON value in a model reply into target.
// Markdown code fences and surrounding prose are tolerated.
func DecodeLLMJSON(content string, target any) error {
	text := unfence(content)
	if text == "" {
		return errors.New("empty payload")
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return fmt.Errorf("no json value in reply (payload snippet: %s)", snippet(text))
	}
	// Decode stops after one value, so trailing prose is ignored.
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(target); err != nil {
		return fmt.Errorf("%w (payload snippet: %s)", err, snippet(text))
	}
	return nil
}

// unfence removes a ```json ... ``` wrapper if present.
func unfence(content string) string {
	text := strings.TrimSpace(content)
	rest, ok := strings.CutPrefix(text, "```")
	if !ok {
		return text
	}
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 && !strings.ContainsAny(rest[:newline], "{[") {
		rest = rest[newline+1:]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// snippet flattens whitespace and caps s for error messages.
func snippet(s string) string {
	flat := strings.Join(strings.Fields(s), " ")
	if flat == "" {
		return "<empty>"
	}
	if runes := []rune(flat); len(runes) > 160 {
		return string(runes[:160]) + "..."
	}
	return flat
}
