package activities

import "strings"

// Shared synonym lists. Several spellings of the same term map to one list,
// so the slices are declared once and referenced from every key.
var (
	atvSynonyms = []string{
		"quad", "four wheeler", "off road", "off-road", "4x4",
		"all terrain vehicle", "dirt bike", "trail riding",
	}
	hotSpringsSynonyms = []string{
		"thermal", "spa", "mineral springs", "geothermal", "springs",
		"natural springs", "thermal baths",
	}
	goldMineSynonyms = []string{
		"mining", "mine tour", "mining tour", "historical mine", "gold rush",
		"underground tour", "mine exploration", "mining history",
	}
	hikingSynonyms   = []string{"trail", "trek", "walking", "nature walk", "mountain", "wilderness"}
	skiingSynonyms   = []string{"slope", "mountain resort", "powder", "alpine"}
	raftingSynonyms  = []string{"river", "whitewater", "rapids", "float"}
	climbingSynonyms = []string{"rock climbing", "bouldering", "mountaineering"}
	fishingSynonyms  = []string{"angling", "fly fishing", "catch"}
	bikingSynonyms   = []string{"bicycle", "mountain bike", "trail ride"}
	kayakingSynonyms = []string{"paddle", "paddling", "water sports"}
	campingSynonyms  = []string{"campground", "outdoor", "tent", "rv"}
	wildlifeSynonyms = []string{"animals", "safari", "nature viewing", "bird watching"}
)

// synonymTable maps the traveler-facing spellings of an activity term to the
// alternate phrasings the catalog uses for the same thing. Keys and values
// are lowercase.
var synonymTable = map[string][]string{
	"atving": atvSynonyms,
	"atv":    atvSynonyms,
	"atvs":   atvSynonyms,

	"hotsprings":  hotSpringsSynonyms,
	"hot springs": hotSpringsSynonyms,
	"hot spring":  hotSpringsSynonyms,

	"goldminetours":   goldMineSynonyms,
	"gold mine tours": goldMineSynonyms,
	"gold mine":       goldMineSynonyms,
	"goldmine":        goldMineSynonyms,

	"hiking": hikingSynonyms,
	"hike":   hikingSynonyms,
	"hikes":  hikingSynonyms,

	"skiing": skiingSynonyms,
	"ski":    skiingSynonyms,

	"rafting": raftingSynonyms,
	"raft":    raftingSynonyms,

	"climbing": climbingSynonyms,
	"climb":    climbingSynonyms,

	"fishing": fishingSynonyms,
	"fish":    fishingSynonyms,

	"biking":  bikingSynonyms,
	"bike":    bikingSynonyms,
	"cycling": bikingSynonyms,

	"kayaking": kayakingSynonyms,
	"kayak":    kayakingSynonyms,

	"camping": campingSynonyms,
	"camp":    campingSynonyms,

	"wildlife": wildlifeSynonyms,
}

// Synonyms returns the alternate phrasings for a search term, or nil when
// the term is not in the table. Matching is case-insensitive.
func Synonyms(term string) []string {
	return synonymTable[strings.ToLower(strings.TrimSpace(term))]
}

// ExpandTerm returns the normalized term followed by its synonyms. The
// result always has at least one element.
func ExpandTerm(term string) []string {
	normalized := strings.ToLower(strings.TrimSpace(term))
	expanded := append([]string{normalized}, synonymTable[normalized]...)
	return expanded
}
