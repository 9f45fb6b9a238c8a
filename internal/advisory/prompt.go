package advisory

import (
	"fmt"
	"strings"
)

// buildPrompt renders the user prompt for a summary request.
func buildPrompt(f facts) string {
	var b strings.Builder
	b.WriteString("Assess this used vehicle for a prospective buyer.\n\n")
	fmt.Fprintf(&b, "Make: %s\n", orUnknown(f.Make))
	fmt.Fprintf(&b, "Model: %s\n", orUnknown(f.Model))
	fmt.Fprintf(&b, "Year: %s\n", intOrUnknown(f.Year))
	fmt.Fprintf(&b, "Age: %s\n", ageText(f))
	fmt.Fprintf(&b, "Mileage: %s\n", intOrUnknown(f.Mileage))
	fmt.Fprintf(&b, "MOT status: %s\n", orUnknown(f.MotStatus))
	fmt.Fprintf(&b, "Tax status: %s\n", orUnknown(f.TaxStatus))
	fmt.Fprintf(&b, "MOT tests on record: %d\n", f.Tests)
	writeList(&b, "MOT failures", f.Failures)
	writeList(&b, "MOT advisories", f.Advisories)
	b.WriteString("\nAnswer these questions in the summary:\n")
	b.WriteString("1. What issues are common for this make and model?\n")
	b.WriteString("2. What red flags appear in this specific MOT history?\n")
	b.WriteString("3. Is it worth buying given its age and mileage?\n")
	b.WriteString("4. What should be checked before purchase?\n")
	return b.String()
}

// templateSummary is the deterministic summary used without a model.
func templateSummary(f facts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s has %d MOT %s on record with %d %s and %d %s.",
		f.Name,
		f.Tests, plural(f.Tests, "test", "tests"),
		len(f.Failures), plural(len(f.Failures), "failure", "failures"),
		len(f.Advisories), plural(len(f.Advisories), "advisory", "advisories"),
	)
	if f.Mileage > 0 {
		fmt.Fprintf(&b, " Last recorded mileage is %d.", f.Mileage)
	}
	if f.MotStatus != "" {
		fmt.Fprintf(&b, " MOT status: %s.", f.MotStatus)
	}
	b.WriteString(" Arrange an independent inspection before purchase.")
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none\n", title)
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func ageText(f facts) string {
	if f.Year == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d years", f.Age)
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unknown"
	}
	return value
}

func intOrUnknown(value int) string {
	if value <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d", value)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
