// Package parties collapses raw political affiliation strings into canonical
// display labels.
package parties

import "strings"

// Canonical group labels.
const (
	LabelNonAttached = "Non-Attached"
	LabelOther       = "Other"
)

// Kind values mirror speeches.political_group_kind.
const (
	KindGroup       = "group"
	KindRole        = "role"
	KindInstitution = "institution"
	KindUnknown     = "unknown"
)

// groupAcronyms maps upper-cased acronyms to canonical spellings. Historic
// groups collapse onto their modern successors.
var groupAcronyms = map[string]string{
	"PPE":        "PPE",
	"EPP":        "PPE",
	"PPE-DE":     "PPE",
	"S&D":        "S&D",
	"PSE":        "S&D",
	"RENEW":      "Renew",
	"ALDE":       "Renew",
	"ELDR":       "Renew",
	"THE LEFT":   "The Left",
	"GUE/NGL":    "The Left",
	"VERTS/ALE":  "Verts/ALE",
	"GREENS/EFA": "Verts/ALE",
	"ECR":        "ECR",
	"ID":         "ID",
	"ENF":        "ID",
	"ESN":        "ESN",
	"PFE":        "PfE",
	"EFDD":       "EFDD",
	"NI":         "NI",
	"UEN":        "NI",
	"IND/DEM":    "NI",
	"ITS":        "NI",
	"TDI":        "NI",
	"EDD":        "NI",
}

// onBehalfMarkers flag a tag or role as speaking for a political group, in
// any of the chamber's working languages.
var onBehalfMarkers = []string{
	"on behalf of",
	"au nom de",
	"im namen der",
	"en nombre del",
	"a nome del",
	"em nome do",
	"w imieniu",
	"namens de",
	"för gruppen",
}

var institutionMarkers = []struct {
	marker string
	label  string
}{
	{"high representative", "High Representative"},
	{"vice-president of the commission", "High Representative"},
	{"european commission", "European Commission"},
	{"member of the commission", "European Commission"},
	{"commissioner", "European Commission"},
	{"the commission", "European Commission"},
	{"council of the eu", "Council of the EU"},
	{"president-in-office of the council", "Council of the EU"},
	{"the council", "Council of the EU"},
	{"european central bank", "EU Institution"},
	{"court of auditors", "EU Institution"},
	{"european ombudsman", "EU Institution"},
}

var rapporteurMarkers = []string{
	"rapporteur",
	"berichterstatter",
	"ponente",
	"relatore",
	"relator",
	"sprawozdawca",
	"föredragande",
	"draftsman of the opinion",
	"draftswoman of the opinion",
}

var chairMarkers = []string{
	"chair of the committee",
	"committee chair",
	"chairman of the committee",
	"chairwoman of the committee",
	"president of the committee",
}

var delegationMarkers = []string{
	"delegation",
	"délégation",
	"delegación",
	"delegazione",
}

var roleMarkers = []string{
	"president",
	"vice-president of the european parliament",
	"quaestor",
	"shadow rapporteur",
}

// proceduralMarkers mark speech titles that carry no affiliation signal at
// all; normalization leaves std unset for them.
var proceduralMarkers = []string{
	"in writing",
	"par écrit",
	"schriftlich",
	"por escrito",
	"per iscritto",
	"na piśmie",
	"blue-card",
	"carton bleu",
	"blaue karte",
	"author",
	"auteur",
	"autor",
}

// Normalized is the canonical affiliation derived from one speech row.
type Normalized struct {
	Std  string
	Kind string
}

// IsKnownAcronym reports whether raw is a recognized political-group acronym
// after upper-casing and whitespace collapse.
func IsKnownAcronym(raw string) bool {
	_, ok := groupAcronyms[canonKey(raw)]
	return ok
}

// CanonicalGroup returns the canonical spelling for a group acronym, or ""
// when unknown.
func CanonicalGroup(raw string) string {
	return groupAcronyms[canonKey(raw)]
}

// ContainsOnBehalfMarker reports whether the string carries a group-speaking
// marker in any working language.
func ContainsOnBehalfMarker(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range onBehalfMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Normalize collapses a speech's raw political group and title into the
// canonical affiliation. Precedence: group acronym, institution marker, role
// marker, procedural pattern. Procedural speeches return an empty Std with
// KindUnknown.
func Normalize(raw, title string) Normalized {
	if canonical := CanonicalGroup(raw); canonical != "" {
		if canonical == "NI" {
			return Normalized{Std: LabelNonAttached, Kind: KindGroup}
		}
		return Normalized{Std: canonical, Kind: KindGroup}
	}

	// A raw value like "on behalf of the PPE Group" still names the group.
	if ContainsOnBehalfMarker(raw) {
		if acronym := extractEmbeddedAcronym(raw); acronym != "" {
			canonical := groupAcronyms[acronym]
			if canonical == "NI" {
				return Normalized{Std: LabelNonAttached, Kind: KindGroup}
			}
			return Normalized{Std: canonical, Kind: KindGroup}
		}
	}

	combined := strings.ToLower(raw + " " + title)

	for _, im := range institutionMarkers {
		if strings.Contains(combined, im.marker) {
			return Normalized{Std: im.label, Kind: KindInstitution}
		}
	}

	for _, marker := range rapporteurMarkers {
		if strings.Contains(combined, marker) {
			return Normalized{Std: "Committee Rapporteur", Kind: KindRole}
		}
	}
	for _, marker := range chairMarkers {
		if strings.Contains(combined, marker) {
			return Normalized{Std: "Committee Chair", Kind: KindRole}
		}
	}
	for _, marker := range delegationMarkers {
		if strings.Contains(combined, marker) {
			return Normalized{Std: "Delegation Member", Kind: KindRole}
		}
	}

	for _, marker := range proceduralMarkers {
		if strings.Contains(combined, marker) {
			return Normalized{Kind: KindUnknown}
		}
	}

	for _, marker := range roleMarkers {
		if strings.Contains(combined, marker) {
			return Normalized{Std: "Parliamentary Role", Kind: KindRole}
		}
	}

	// Any remaining non-empty title is some parliamentary function.
	if strings.TrimSpace(title) != "" {
		return Normalized{Std: "Parliamentary Role", Kind: KindRole}
	}

	return Normalized{Kind: KindUnknown}
}

// extractEmbeddedAcronym scans the tokens of a phrase for a known acronym.
func extractEmbeddedAcronym(s string) string {
	for _, token := range strings.Fields(s) {
		key := canonKey(strings.Trim(token, ".,;:()"))
		if _, ok := groupAcronyms[key]; ok {
			return key
		}
	}
	return ""
}

func canonKey(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(strings.TrimSpace(raw)), " "))
}
