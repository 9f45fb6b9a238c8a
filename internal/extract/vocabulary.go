package extract

import (
	"sort"
	"strings"

	"carprobe/internal/textutil"
)

type makeEntry struct {
	name    string
	aliases []string
	models  []string
}

var makes = []makeEntry{
	{"Alfa Romeo", []string{"alfa romeo", "alfa"}, []string{"Giulietta", "Giulia", "MiTo", "Stelvio", "Tonale"}},
	{"Audi", []string{"audi"}, []string{"A1", "A3", "A4", "A5", "A6", "A7", "A8", "Q2", "Q3", "Q5", "Q7", "Q8", "TT", "e-tron"}},
	{"BMW", []string{"bmw"}, []string{"1 Series", "2 Series", "3 Series", "4 Series", "5 Series", "7 Series", "X1", "X2", "X3", "X4", "X5", "Z4", "i3", "i4"}},
	{"Citroen", []string{"citroen"}, []string{"C1", "C3 Aircross", "C3", "C4", "C5 Aircross", "Berlingo", "DS3", "Picasso"}},
	{"Dacia", []string{"dacia"}, []string{"Sandero", "Duster", "Logan", "Jogger"}},
	{"Fiat", []string{"fiat"}, []string{"500X", "500", "Panda", "Punto", "Tipo", "Doblo"}},
	{"Ford", []string{"ford"}, []string{"Fiesta", "Focus", "Kuga", "Puma", "Mondeo", "Ka", "Galaxy", "S-Max", "C-Max", "B-Max", "EcoSport", "Ranger", "Transit Connect", "Transit Custom", "Transit", "Mustang"}},
	{"Honda", []string{"honda"}, []string{"Jazz", "Civic", "CR-V", "HR-V", "Accord"}},
	{"Hyundai", []string{"hyundai"}, []string{"i10", "i20", "i30", "Tucson", "Kona", "Ioniq", "Santa Fe"}},
	{"Jaguar", []string{"jaguar", "jag"}, []string{"XE", "XF", "XJ", "F-Pace", "E-Pace", "F-Type", "I-Pace"}},
	{"Kia", []string{"kia"}, []string{"Picanto", "Rio", "Ceed", "Sportage", "Niro", "Sorento", "Stonic"}},
	{"Land Rover", []string{"land rover", "landrover"}, []string{"Range Rover Evoque", "Range Rover Sport", "Range Rover Velar", "Range Rover", "Discovery Sport", "Discovery", "Defender", "Freelander"}},
	{"Mazda", []string{"mazda"}, []string{"Mazda2", "Mazda3", "Mazda6", "CX-3", "CX-30", "CX-5", "MX-5"}},
	{"Mercedes-Benz", []string{"mercedes-benz", "mercedes benz", "mercedes", "merc"}, []string{"A-Class", "B-Class", "C-Class", "E-Class", "S-Class", "CLA", "GLA", "GLC", "GLE", "Sprinter", "Vito"}},
	{"Mini", []string{"mini"}, []string{"Cooper", "Countryman", "Clubman", "One", "Paceman"}},
	{"Nissan", []string{"nissan"}, []string{"Micra", "Juke", "Qashqai", "Leaf", "Note", "X-Trail", "Navara"}},
	{"Peugeot", []string{"peugeot"}, []string{"108", "208", "308", "508", "2008", "3008", "5008", "Partner"}},
	{"Porsche", []string{"porsche"}, []string{"911", "Boxster", "Cayman", "Cayenne", "Macan", "Panamera", "Taycan"}},
	{"Renault", []string{"renault"}, []string{"Clio", "Captur", "Megane", "Kadjar", "Zoe", "Twingo", "Scenic"}},
	{"Seat", []string{"seat"}, []string{"Ibiza", "Leon", "Arona", "Ateca", "Tarraco", "Mii"}},
	{"Skoda", []string{"skoda"}, []string{"Fabia", "Octavia", "Superb", "Kodiaq", "Karoq", "Kamiq", "Citigo", "Yeti"}},
	{"Suzuki", []string{"suzuki"}, []string{"Swift", "Vitara", "Ignis", "Jimny", "Celerio"}},
	{"Tesla", []string{"tesla"}, []string{"Model 3", "Model S", "Model X", "Model Y"}},
	{"Toyota", []string{"toyota"}, []string{"Yaris Cross", "Yaris", "Aygo", "Corolla", "Auris", "C-HR", "RAV4", "Prius", "Hilux"}},
	{"Vauxhall", []string{"vauxhall"}, []string{"Corsa", "Astra", "Insignia", "Mokka", "Zafira", "Meriva", "Crossland", "Grandland", "Adam", "Viva"}},
	{"Volkswagen", []string{"volkswagen", "vw"}, []string{"Golf", "Polo", "Passat", "Tiguan", "T-Roc", "T-Cross", "Up", "Arteon", "Touran", "Sharan", "Transporter", "Caddy", "Scirocco", "Beetle"}},
	{"Volvo", []string{"volvo"}, []string{"V40", "V60", "V90", "S60", "S90", "XC40", "XC60", "XC90"}},
}

// phrase is a vocabulary entry split into words for positional matching.
type phrase struct {
	display string
	words   []string
}

type makeIndex struct {
	name    string
	aliases []phrase
	models  []phrase
}

var makeVocabulary = buildVocabulary()

func buildVocabulary() []makeIndex {
	index := make([]makeIndex, 0, len(makes))
	for _, entry := range makes {
		item := makeIndex{name: entry.name}
		for _, alias := range entry.aliases {
			item.aliases = append(item.aliases, phrase{display: entry.name, words: strings.Fields(alias)})
		}
		for _, model := range entry.models {
			item.models = append(item.models, phrase{display: model, words: textutil.Words(model)})
		}
		// Longer phrases first so "range rover sport" wins over "range rover".
		sortLongestFirst(item.aliases)
		sortLongestFirst(item.models)
		index = append(index, item)
	}
	return index
}

func sortLongestFirst(phrases []phrase) {
	sort.SliceStable(phrases, func(i, j int) bool {
		return len(phrases[i].words) > len(phrases[j].words)
	})
}

func (p phrase) matchesAt(words []string, pos int) bool {
	if pos+len(p.words) > len(words) {
		return false
	}
	for i, w := range p.words {
		if words[pos+i] != w {
			return false
		}
	}
	return true
}

// stopWords are never guessed as a model name.
var stopWords = map[string]struct{}{
	"for": {}, "sale": {}, "with": {}, "and": {}, "the": {}, "in": {}, "new": {}, "low": {}, "miles": {}, "mileage": {},
	"petrol": {}, "diesel": {}, "hybrid": {}, "electric": {}, "lpg": {}, "manual": {}, "automatic": {}, "auto": {},
	"hatchback": {}, "hatch": {}, "saloon": {}, "estate": {}, "suv": {}, "coupe": {}, "convertible": {}, "mpv": {},
	"door": {}, "doors": {}, "dr": {}, "owner": {}, "owners": {}, "fsh": {}, "reg": {}, "plate": {},
}

var colours = map[string]string{
	"black":  "Black",
	"white":  "White",
	"silver": "Silver",
	"grey":   "Grey",
	"gray":   "Grey",
	"blue":   "Blue",
	"red":    "Red",
	"green":  "Green",
	"yellow": "Yellow",
	"orange": "Orange",
	"brown":  "Brown",
	"beige":  "Beige",
	"gold":   "Gold",
	"purple": "Purple",
	"bronze": "Bronze",
	"maroon": "Maroon",
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}
