package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"carprobe/internal/logging"
	"carprobe/internal/services/llm"
	"carprobe/internal/store"
)

// SystemPrompt sets the model's role.
const SystemPrompt = `You are a UK used-vehicle expert advising a private buyer.
Respond with JSON only, using this shape:
{"summary": "...", "repair_cost_estimate": "...", "expected_lifetime": "..."}`

const defaultMaxChars = 1200

// Completer issues JSON completions.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Advice is a purchase assessment for one vehicle.
type Advice struct {
	Summary        string
	RepairEstimate string
	LifetimeNote   string
	// Generated is false when the templated fallback was used.
	Generated bool
}

// Synthesizer builds purchase advice from a vehicle and its MOT history.
type Synthesizer struct {
	client   Completer
	maxChars int
	logger   *slog.Logger
	now      func() time.Time
}

// NewSynthesizer constructs a synthesizer. A nil client always produces the
// templated summary.
func NewSynthesizer(client Completer, maxChars int, logger *slog.Logger) *Synthesizer {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Synthesizer{
		client:   client,
		maxChars: maxChars,
		logger:   logging.NewComponentLogger(logger, "advisory"),
		now:      time.Now,
	}
}

type generated struct {
	Summary            string `json:"summary"`
	RepairCostEstimate string `json:"repair_cost_estimate"`
	ExpectedLifetime   string `json:"expected_lifetime"`
}

// Synthesize returns generated advice, or the templated fallback when the
// model is unavailable or replies with something unusable.
func (s *Synthesizer) Synthesize(ctx context.Context, vehicle *store.Vehicle, tests []store.MotTest) Advice {
	f := gather(vehicle, tests, s.now())
	if s.client == nil {
		return s.fallback(f)
	}
	logger := logging.WithContext(ctx, s.logger)
	content, err := s.client.CompleteJSON(ctx, SystemPrompt, buildPrompt(f))
	if err != nil {
		logging.WarnWithContext(logger, "summary generation failed", "advisory_generation_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm.api_key and advisory.model"),
		)
		return s.fallback(f)
	}
	var reply generated
	if err := llm.DecodeLLMJSON(content, &reply); err != nil || strings.TrimSpace(reply.Summary) == "" {
		logging.WarnWithContext(logger, "summary reply unusable", "advisory_reply_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "model did not return the requested JSON"),
		)
		return s.fallback(f)
	}
	return Advice{
		Summary:        truncate(strings.TrimSpace(reply.Summary), s.maxChars),
		RepairEstimate: strings.TrimSpace(reply.RepairCostEstimate),
		LifetimeNote:   strings.TrimSpace(reply.ExpectedLifetime),
		Generated:      true,
	}
}

func (s *Synthesizer) fallback(f facts) Advice {
	return Advice{Summary: truncate(templateSummary(f), s.maxChars)}
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	cut := strings.TrimRight(string(runes[:limit-3]), " ,.;:")
	return cut + "..."
}

// facts is the aggregated input for prompts and templates.
type facts struct {
	Name       string
	Make       string
	Model      string
	Year       int
	Age        int
	Mileage    int
	MotStatus  string
	TaxStatus  string
	Tests      int
	Failures   []string
	Advisories []string
}

func gather(v *store.Vehicle, tests []store.MotTest, now time.Time) facts {
	f := facts{Tests: len(tests)}
	if v != nil {
		f.Make = v.Make
		f.Model = v.Model
		f.Year = v.Year
		f.Mileage = v.Mileage
		f.MotStatus = v.MotStatus
		f.TaxStatus = v.TaxStatus
	}
	if f.Year > 0 && now.Year() >= f.Year {
		f.Age = now.Year() - f.Year
	}
	latest := time.Time{}
	for _, test := range tests {
		f.Failures = append(f.Failures, test.Failures...)
		f.Advisories = append(f.Advisories, test.Advisories...)
		if test.CompletedAt.After(latest) && test.Odometer > 0 {
			latest = test.CompletedAt
			f.Mileage = test.Odometer
		}
	}
	f.Name = strings.TrimSpace(strings.Join([]string{f.Make, f.Model}, " "))
	if f.Name == "" {
		f.Name = "This vehicle"
	} else if f.Year > 0 {
		f.Name = fmt.Sprintf("%d %s", f.Year, f.Name)
	}
	return f
}
