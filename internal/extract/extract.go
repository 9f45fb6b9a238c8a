package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carprobe/internal/textutil"
)

const minYear = 1900

// Service history levels.
const (
	ServiceFull    = "full"
	ServicePartial = "partial"
)

// Input carries the listing text the engine reads.
type Input struct {
	Title       string
	Description string
	Specs       []string
	Price       decimal.Decimal
	PostedAt    time.Time
	// Now anchors the upper bound for plausible years. Zero means time.Now.
	Now time.Time
}

// Attributes are best-effort vehicle fields. Zero values mean unknown.
type Attributes struct {
	Year           int
	Make           string
	Model          string
	FuelType       string
	Transmission   string
	Mileage        int
	EngineSize     int
	Doors          int
	BodyType       string
	Colour         string
	PreviousOwners int
	ServiceHistory string
	Price          decimal.NullDecimal
}

// Empty reports whether nothing was extracted.
func (a Attributes) Empty() bool {
	return a == Attributes{}
}

// FromListing extracts attributes from a listing's title, spec tokens and
// description in that order of precedence, then applies listing fallbacks.
// A field set by an earlier source is never overwritten.
func FromListing(in Input) Attributes {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	maxYear := now.Year() + 1

	var attrs Attributes
	sources := []string{in.Title, strings.Join(in.Specs, " , "), in.Description}
	for _, source := range sources {
		if strings.TrimSpace(source) == "" {
			continue
		}
		scan(&attrs, source, maxYear)
	}

	if attrs.Year == 0 && !in.PostedAt.IsZero() {
		if year := in.PostedAt.Year(); year >= minYear && year <= maxYear {
			attrs.Year = year
		}
	}
	if !attrs.Price.Valid && in.Price.IsPositive() {
		attrs.Price = decimal.NewNullDecimal(in.Price)
	}
	return attrs
}

func scan(attrs *Attributes, source string, maxYear int) {
	text := strings.ToLower(source)

	if attrs.Year == 0 {
		attrs.Year = findYear(text, maxYear)
	}
	if attrs.Make == "" || attrs.Model == "" {
		scanMakeModel(attrs, textutil.Words(text))
	}
	setString(&attrs.FuelType, firstRule(text, fuelRules))
	setString(&attrs.Transmission, firstRule(text, transmissionRules))
	setInt(&attrs.Mileage, findMileage(text))
	setInt(&attrs.EngineSize, findEngineSize(text))
	setInt(&attrs.Doors, findDoors(text))
	setString(&attrs.BodyType, firstRule(text, bodyRules))
	setString(&attrs.Colour, findColour(text))
	setInt(&attrs.PreviousOwners, findOwners(text))
	setString(&attrs.ServiceHistory, findServiceHistory(text))
	if !attrs.Price.Valid {
		if raw := findPrice(text); raw != "" {
			if price, err := decimal.NewFromString(raw); err == nil && price.IsPositive() {
				attrs.Price = decimal.NewNullDecimal(price)
			}
		}
	}
}

var guessPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// scanMakeModel finds the first make token, then a dictionary model after it,
// falling back to the first plausible word after the make.
func scanMakeModel(attrs *Attributes, words []string) {
	entry, pos, length := findMake(words)
	if entry == nil {
		return
	}
	if attrs.Make == "" {
		attrs.Make = entry.name
	} else if attrs.Make != entry.name {
		return
	}
	if attrs.Model != "" {
		return
	}
	rest := words[pos+length:]
	if model := findModel(entry, rest); model != "" {
		attrs.Model = model
		return
	}
	for _, word := range rest {
		if !guessPattern.MatchString(word) || !strings.ContainsAny(word, "abcdefghijklmnopqrstuvwxyz") {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, colour := colours[word]; colour {
			continue
		}
		attrs.Model = textutil.TitleCase(word)
		return
	}
}

// findMake returns the first make followed by one of its own models. When no
// make has a model after it, the first make mentioned wins.
func findMake(words []string) (*makeIndex, int, int) {
	var (
		first             *makeIndex
		firstPos, firstLn int
	)
	for pos := range words {
		for i := range makeVocabulary {
			entry := &makeVocabulary[i]
			for _, alias := range entry.aliases {
				if !alias.matchesAt(words, pos) {
					continue
				}
				if findModel(entry, words[pos+len(alias.words):]) != "" {
					return entry, pos, len(alias.words)
				}
				if first == nil {
					first, firstPos, firstLn = entry, pos, len(alias.words)
				}
				break
			}
		}
	}
	return first, firstPos, firstLn
}

func findModel(entry *makeIndex, words []string) string {
	for pos := range words {
		for _, model := range entry.models {
			if model.matchesAt(words, pos) {
				return model.display
			}
		}
	}
	return ""
}

func setString(dst *string, value string) {
	if *dst == "" && value != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if *dst == 0 && value > 0 {
		*dst = value
	}
}
