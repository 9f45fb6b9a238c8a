package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"carprobe/internal/textutil"
)

var (
	yearPattern       = regexp.MustCompile(`\b(1[89]\d{2}|2\d{3})\b`)
	mileagePattern    = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k)?\s*(?:miles|mi|mls)\b`)
	mileageLabel      = regexp.MustCompile(`\bmileage\s*[:\-]?\s*(\d{1,3}(?:,\d{3})+|\d+)\b`)
	engineLitres      = regexp.MustCompile(`\b(\d\.\d)\s*(?:l|litre|liter|litres|tdi|tsi|tfsi|hdi|crdi|dci|cdti|vvt|t|i)?\b`)
	engineCC          = regexp.MustCompile(`\b(\d{3,4})\s*cc\b`)
	doorsPattern      = regexp.MustCompile(`\b([2-5])\s*-?\s*(?:doors?|dr)\b`)
	ownersPattern     = regexp.MustCompile(`\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten)\s+(?:previous\s+|former\s+)?(?:owners?|keepers?)\b`)
	fullServicePat    = regexp.MustCompile(`\b(?:full(?:\s+\w+)?\s+service\s+history|fsh|fdsh)\b`)
	partialServicePat = regexp.MustCompile(`\b(?:part(?:ial)?\s+service\s+history|psh)\b`)
	pricePattern      = regexp.MustCompile(`£\s?(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{2}))?`)
)

// keywordRule maps a pattern to a display value. Matches followed by a word in
// notBefore are ignored ("electric windows" is not a fuel type).
type keywordRule struct {
	pattern   *regexp.Regexp
	value     string
	notBefore []string
}

var fuelRules = []keywordRule{
	{pattern: regexp.MustCompile(`\b(?:plug-in\s+hybrid|plug\s+in\s+hybrid|phev)\b`), value: "Plug-in Hybrid"},
	{pattern: regexp.MustCompile(`\b(?:hybrid|hev|mhev)\b`), value: "Hybrid"},
	{pattern: regexp.MustCompile(`\b(?:electric|ev|bev)\b`), value: "Electric", notBefore: []string{"windows", "window", "mirrors", "seats", "sunroof", "tailgate", "handbrake", "parking", "roof"}},
	{pattern: regexp.MustCompile(`\b(?:lpg|autogas)\b`), value: "LPG"},
	{pattern: regexp.MustCompile(`\b(?:diesel|tdi|hdi|crdi|dci|cdti|bluehdi|d4d)\b`), value: "Diesel"},
	{pattern: regexp.MustCompile(`\b(?:petrol|gasoline|tsi|tfsi|ecoboost)\b`), value: "Petrol"},
}

var transmissionRules = []keywordRule{
	{pattern: regexp.MustCompile(`\bsemi[-\s]?auto(?:matic)?\b`), value: "Semi-Automatic"},
	{pattern: regexp.MustCompile(`\b(?:automatic|auto|dsg|cvt|tiptronic|steptronic)\b`), value: "Automatic", notBefore: []string{"lights", "headlights", "wipers", "trader", "hold", "climate", "dimming"}},
	{pattern: regexp.MustCompile(`\bmanual\b`), value: "Manual", notBefore: []string{"book", "books", "handbook"}},
}

var bodyRules = []keywordRule{
	{pattern: regexp.MustCompile(`\b(?:hatchback|hatch)\b`), value: "Hatchback"},
	{pattern: regexp.MustCompile(`\b(?:saloon|sedan)\b`), value: "Saloon"},
	{pattern: regexp.MustCompile(`\b(?:estate|touring|tourer|avant|sports\s+tourer)\b`), value: "Estate"},
	{pattern: regexp.MustCompile(`\b(?:suv|crossover)\b`), value: "SUV"},
	{pattern: regexp.MustCompile(`\b(?:coupe|coupé)`), value: "Coupe"},
	{pattern: regexp.MustCompile(`\b(?:convertible|cabriolet|cabrio|roadster)\b`), value: "Convertible"},
	{pattern: regexp.MustCompile(`\b(?:mpv|people\s+carrier)\b`), value: "MPV"},
	{pattern: regexp.MustCompile(`\b(?:pickup|pick-up|pick\s+up)\b`), value: "Pickup"},
	{pattern: regexp.MustCompile(`\bvan\b`), value: "Van"},
}

var colourPattern = func() *regexp.Regexp {
	names := make([]string, 0, len(colours))
	for name := range colours {
		names = append(names, name)
	}
	return regexp.MustCompile(`\b(` + strings.Join(names, "|") + `)\b`)
}()

// firstRule returns the value of the earliest matching rule in rule order.
func firstRule(text string, rules []keywordRule) string {
	for _, rule := range rules {
		for _, loc := range rule.pattern.FindAllStringIndex(text, -1) {
			if followedBy(text[loc[1]:], rule.notBefore) {
				continue
			}
			return rule.value
		}
	}
	return ""
}

func followedBy(rest string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return false
	}
	next := strings.Trim(fields[0], ",.;:!?()")
	for _, w := range words {
		if next == w {
			return true
		}
	}
	return false
}

func parseGrouped(value string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(value, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

func findYear(text string, maxYear int) int {
	for _, loc := range yearPattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[loc[2]:loc[3]]
		year, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if year < minYear || year > maxYear || namesModel(text[:loc[2]], raw) {
			continue
		}
		return year
	}
	return 0
}

// namesModel reports whether token, directly after before, is a model of the
// make that before ends with, as in "peugeot 2008".
func namesModel(before, token string) bool {
	words := textutil.Words(before)
	if len(words) == 0 {
		return false
	}
	last := words[len(words)-1]
	for i := range makeVocabulary {
		entry := &makeVocabulary[i]
		for _, alias := range entry.aliases {
			if alias.words[len(alias.words)-1] != last {
				continue
			}
			for _, model := range entry.models {
				if len(model.words) == 1 && model.words[0] == token {
					return true
				}
			}
		}
	}
	return false
}

func findMileage(text string) int {
	if m := mileagePattern.FindStringSubmatch(text); m != nil {
		if m[2] != "" {
			value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err == nil {
				return int(math.Round(value * 1000))
			}
		} else if n, ok := parseGrouped(strings.Split(m[1], ".")[0]); ok {
			return n
		}
	}
	if m := mileageLabel.FindStringSubmatch(text); m != nil {
		if n, ok := parseGrouped(m[1]); ok {
			return n
		}
	}
	return 0
}

func findEngineSize(text string) int {
	if m := engineCC.FindStringSubmatch(text); m != nil {
		if cc, err := strconv.Atoi(m[1]); err == nil && cc >= 600 && cc <= 8000 {
			return cc
		}
	}
	for _, m := range engineLitres.FindAllStringSubmatch(text, -1) {
		litres, err := strconv.ParseFloat(m[1], 64)
		if err != nil || litres < 0.6 || litres > 8.0 {
			continue
		}
		return int(math.Round(litres*10)) * 100
	}
	return 0
}

func findDoors(text string) int {
	if m := doorsPattern.FindStringSubmatch(text); m != nil {
		doors, _ := strconv.Atoi(m[1])
		return doors
	}
	return 0
}

func findOwners(text string) int {
	m := ownersPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	if n, ok := numberWords[m[1]]; ok {
		return n
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func findServiceHistory(text string) string {
	if partialServicePat.MatchString(text) {
		return ServicePartial
	}
	if fullServicePat.MatchString(text) {
		return ServiceFull
	}
	return ""
}

func findColour(text string) string {
	if m := colourPattern.FindStringSubmatch(text); m != nil {
		return colours[m[1]]
	}
	return ""
}

func findPrice(text string) string {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	value := strings.ReplaceAll(m[1], ",", "")
	if m[2] != "" {
		value += "." + m[2]
	}
	return value
}
